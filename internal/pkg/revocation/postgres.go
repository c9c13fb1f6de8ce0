package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads the identity blacklist table. Rows are written by the
// identity module inside its logout transaction.
type Postgres struct {
	db queryRower
}

func NewPostgres(db queryRower) *Postgres {
	return &Postgres{db: db}
}

const lookupSQL = `SELECT expires_at FROM identity_blacklisted_access_tokens WHERE token_digest = $1`

func (p *Postgres) Lookup(ctx context.Context, digest string) (time.Time, bool, error) {
	var expiresAt time.Time
	err := p.db.QueryRow(ctx, lookupSQL, digest).Scan(&expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return expiresAt, true, nil
}
