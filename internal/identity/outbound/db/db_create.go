package db

import (
	"context"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

func (s *DB) CreateUser(ctx context.Context, u entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `INSERT INTO identity_users
		(id, phone_number, first_name, last_name, middle_name, birth_date, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12)`,
		u.ID, u.PhoneNumber, u.FirstName, u.LastName, u.MiddleName, u.BirthDate,
		u.Email, u.PasswordHash, int16(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt)

	return s.mapError(err)
}

func (s *DB) CreateRefreshToken(ctx context.Context, rt entity.RefreshToken) (err error) {
	ctx, span := s.startSpan(ctx, "CreateRefreshToken")
	defer func() { s.endSpan(span, err) }()

	return s.mapError(insertRefreshToken(ctx, s.conn, rt))
}

func insertRefreshToken(ctx context.Context, q querier, rt entity.RefreshToken) error {
	_, err := q.Exec(ctx, `INSERT INTO identity_refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`, rt.ID, rt.UserID, rt.TokenHash, rt.ExpiresAt, rt.CreatedAt)
	return err
}

func insertOTP(ctx context.Context, q querier, rec entity.OTPRecord) error {
	_, err := q.Exec(ctx, `INSERT INTO identity_otps
		(id, subject_ref, user_id, purpose, code_hash, opaque_key, confirm_token_hash, attempts, created_at)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		rec.ID, rec.SubjectRef, rec.UserID, int16(rec.Purpose), rec.CodeHash, rec.OpaqueKeyHash,
		rec.ConfirmTokenHash, rec.Attempts, rec.CreatedAt)
	return err
}
