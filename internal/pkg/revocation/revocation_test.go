package revocation

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainDigest struct{}

func (plainDigest) Digest(s string) string { return "d:" + s }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeStore struct {
	rows  map[string]time.Time
	err   error
	calls int
}

func (f *fakeStore) Lookup(_ context.Context, digest string) (time.Time, bool, error) {
	f.calls++
	if f.err != nil {
		return time.Time{}, false, f.err
	}
	exp, ok := f.rows[digest]
	return exp, ok, nil
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newChecker(t *testing.T, store Store) (*Checker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(Config{
		Store:  store,
		Redis:  client,
		Hasher: plainDigest{},
		Clock:  fixedClock{now: now},
	}), mr
}

func TestChecker_StoreHitIsCached(t *testing.T) {
	store := &fakeStore{rows: map[string]time.Time{"d:tok": now.Add(10 * time.Minute)}}
	c, mr := newChecker(t, store)
	ctx := context.Background()

	revoked, err := c.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("revoked:d:tok"))
	assert.Equal(t, 10*time.Minute, mr.TTL("revoked:d:tok"))

	revoked, err = c.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 1, store.calls)
}

func TestChecker_RedisHit(t *testing.T) {
	store := &fakeStore{}
	c, mr := newChecker(t, store)
	require.NoError(t, mr.Set("revoked:d:tok", "1"))
	mr.SetTTL("revoked:d:tok", time.Minute)

	revoked, err := c.IsRevoked(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Zero(t, store.calls)
}

func TestChecker_MissIsNotCached(t *testing.T) {
	store := &fakeStore{rows: map[string]time.Time{}}
	c, _ := newChecker(t, store)
	ctx := context.Background()

	for range 2 {
		revoked, err := c.IsRevoked(ctx, "tok")
		require.NoError(t, err)
		assert.False(t, revoked)
	}
	assert.Equal(t, 2, store.calls)
}

func TestChecker_RedisDownFallsThrough(t *testing.T) {
	store := &fakeStore{rows: map[string]time.Time{"d:tok": now.Add(time.Minute)}}
	c, mr := newChecker(t, store)
	mr.Close()

	revoked, err := c.IsRevoked(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestChecker_StoreErrorFailsClosed(t *testing.T) {
	c, _ := newChecker(t, &fakeStore{err: errors.New("db down")})

	_, err := c.IsRevoked(context.Background(), "tok")
	assert.Error(t, err)
}

func TestChecker_RememberSkipsExpired(t *testing.T) {
	c, mr := newChecker(t, &fakeStore{})
	ctx := context.Background()

	c.Remember(ctx, "old", now.Add(-time.Second))
	assert.False(t, mr.Exists("revoked:old"))

	c.Remember(ctx, "fresh", now.Add(time.Hour))
	assert.True(t, mr.Exists("revoked:fresh"))
	_, ok := c.local.Get("fresh")
	assert.True(t, ok)
}

func TestPostgres_Lookup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	exp := now.Add(time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("hit").
		WillReturnRows(pgxmock.NewRows([]string{"expires_at"}).AddRow(exp))
	mock.ExpectQuery(regexp.QuoteMeta(lookupSQL)).
		WithArgs("miss").
		WillReturnRows(pgxmock.NewRows([]string{"expires_at"}))

	p := NewPostgres(mock)

	got, found, err := p.Lookup(context.Background(), "hit")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, exp, got)

	_, found, err = p.Lookup(context.Background(), "miss")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}
