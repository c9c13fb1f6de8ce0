package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

const userColumns = `id, phone_number, first_name, last_name, middle_name, birth_date, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var (
		u     entity.User
		email pgtype.Text
		role  int16
	)
	if err := row.Scan(&u.ID, &u.PhoneNumber, &u.FirstName, &u.LastName, &u.MiddleName, &u.BirthDate,
		&email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Role = entity.Role(role)
	return &u, nil
}

func (s *DB) GetUserByPhone(ctx context.Context, phone string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByPhone")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM identity_users WHERE phone_number = $1`, phone))
	if err != nil {
		return nil, s.mapError(err)
	}
	return u, nil
}

func (s *DB) GetUserByID(ctx context.Context, id int64) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByID")
	defer func() { s.endSpan(span, err) }()

	u, err := scanUser(s.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM identity_users WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}
	return u, nil
}

const otpColumns = `id, subject_ref, user_id, purpose, code_hash, opaque_key, confirm_token_hash, attempts, created_at, deleted_at`

func scanOTP(row pgx.Row) (entity.OTPRecord, error) {
	var (
		rec       entity.OTPRecord
		userID    pgtype.Int8
		purpose   int16
		confirm   pgtype.Text
		deletedAt pgtype.Timestamptz
	)
	if err := row.Scan(&rec.ID, &rec.SubjectRef, &userID, &purpose, &rec.CodeHash, &rec.OpaqueKeyHash,
		&confirm, &rec.Attempts, &rec.CreatedAt, &deletedAt); err != nil {
		return entity.OTPRecord{}, err
	}

	rec.UserID = userID.Int64
	rec.Purpose = entity.OTPPurpose(purpose)
	rec.ConfirmTokenHash = confirm.String

	var at *time.Time
	if deletedAt.Valid {
		at = &deletedAt.Time
	}
	rec.State = entity.StateFromDeletedAt(at)

	return rec, nil
}

func (s *DB) GetActiveOTPByKey(ctx context.Context, keyHash string, purpose entity.OTPPurpose) (_ *entity.OTPRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetActiveOTPByKey")
	defer func() { s.endSpan(span, err) }()

	rec, err := scanOTP(s.conn.QueryRow(ctx, `SELECT `+otpColumns+` FROM identity_otps
		WHERE opaque_key = $1 AND purpose = $2 AND deleted_at IS NULL`, keyHash, int16(purpose)))
	if err != nil {
		return nil, s.mapError(err)
	}
	return &rec, nil
}

func (s *DB) GetActiveOTPByConfirmToken(ctx context.Context, tokenHash string) (_ *entity.OTPRecord, err error) {
	ctx, span := s.startSpan(ctx, "GetActiveOTPByConfirmToken")
	defer func() { s.endSpan(span, err) }()

	rec, err := scanOTP(s.conn.QueryRow(ctx, `SELECT `+otpColumns+` FROM identity_otps
		WHERE confirm_token_hash = $1 AND purpose = $2 AND deleted_at IS NULL`,
		tokenHash, int16(entity.OTPPurposePasswordResetConfirm)))
	if err != nil {
		return nil, s.mapError(err)
	}
	return &rec, nil
}

// activeOTPs lists the active records of a subject, newest first. Rows are
// locked until the surrounding transaction ends.
func activeOTPs(ctx context.Context, q querier, subject string, purpose entity.OTPPurpose) ([]entity.OTPRecord, error) {
	rows, err := q.Query(ctx, `SELECT `+otpColumns+` FROM identity_otps
		WHERE subject_ref = $1 AND purpose = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC FOR UPDATE`, subject, int16(purpose))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.OTPRecord
	for rows.Next() {
		rec, err := scanOTP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (s *DB) GetRefreshToken(ctx context.Context, tokenHash string) (_ *entity.RefreshToken, err error) {
	ctx, span := s.startSpan(ctx, "GetRefreshToken")
	defer func() { s.endSpan(span, err) }()

	var (
		rt         entity.RefreshToken
		revokedAt  pgtype.Timestamptz
		replacedBy pgtype.Int8
	)
	err = s.conn.QueryRow(ctx, `SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM identity_refresh_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&rt.ID, &rt.UserID, &rt.TokenHash, &rt.ExpiresAt, &revokedAt, &replacedBy, &rt.CreatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	if revokedAt.Valid {
		rt.RevokedAt = &revokedAt.Time
	}
	if replacedBy.Valid {
		rt.ReplacedBy = &replacedBy.Int64
	}

	return &rt, nil
}
