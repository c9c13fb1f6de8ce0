package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

var errNoInsert = errors.New("otp not inserted")

// CreateOTP holds a transaction scoped advisory lock on (purpose, subject)
// while it reads the active records, so concurrent issuers see each other.
// rec is inserted when decide allows it; MustRotate first invalidates every
// active record.
func (s *DB) CreateOTP(ctx context.Context, rec entity.OTPRecord, decide func([]entity.OTPRecord) entity.Decision) (_ entity.Decision, err error) {
	ctx, span := s.startSpan(ctx, "CreateOTP")
	defer func() { s.endSpan(span, err) }()

	var decision entity.Decision
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		key := fmt.Sprintf("otp:%d:%s", rec.Purpose, rec.SubjectRef)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return s.mapError(err)
		}

		active, err := activeOTPs(ctx, tx, rec.SubjectRef, rec.Purpose)
		if err != nil {
			return s.mapError(err)
		}

		decision = decide(active)
		switch decision {
		case entity.DecisionAllow:
		case entity.DecisionMustRotate:
			if err := invalidateOTPs(ctx, tx, rec.SubjectRef, rec.Purpose, rec.CreatedAt); err != nil {
				return s.mapError(err)
			}
		default:
			return errNoInsert
		}

		return s.mapError(insertOTP(ctx, tx, rec))
	})
	if errors.Is(err, errNoInsert) {
		return decision, nil
	}

	return decision, err
}

// ActivateUserByOTP consumes rec together with its siblings and activates
// the user. A rec that is no longer active reports goerror.ErrNotFound.
func (s *DB) ActivateUserByOTP(ctx context.Context, rec entity.OTPRecord, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ActivateUserByOTP")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := consumeOTP(ctx, tx, rec, at); err != nil {
			return s.mapError(err)
		}

		if rec.UserID == 0 {
			return nil
		}

		_, err := tx.Exec(ctx, `UPDATE identity_users SET is_active = TRUE, updated_at = $2 WHERE id = $1`, rec.UserID, at)
		return s.mapError(err)
	})
}

// ExchangeOTPForConfirm consumes a reset request record and stores the
// confirm record that replaces any earlier one.
func (s *DB) ExchangeOTPForConfirm(ctx context.Context, rec, confirm entity.OTPRecord, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ExchangeOTPForConfirm")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := consumeOTP(ctx, tx, rec, at); err != nil {
			return s.mapError(err)
		}

		if err := invalidateOTPs(ctx, tx, rec.SubjectRef, entity.OTPPurposePasswordResetConfirm, at); err != nil {
			return s.mapError(err)
		}

		return s.mapError(insertOTP(ctx, tx, confirm))
	})
}

// ResetPasswordByConfirm spends the confirm record, stores the new hash and
// revokes every refresh token of the user.
func (s *DB) ResetPasswordByConfirm(ctx context.Context, rec entity.OTPRecord, hash string, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ResetPasswordByConfirm")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := invalidateOTP(ctx, tx, rec.ID, at); err != nil {
			return s.mapError(err)
		}

		return s.mapError(setPassword(ctx, tx, rec.UserID, hash, at))
	})
}

func (s *DB) ChangePassword(ctx context.Context, userID int64, hash string, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "ChangePassword")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.mapError(setPassword(ctx, tx, userID, hash, at))
	})
}

func (s *DB) RotateRefreshToken(ctx context.Context, oldID int64, next entity.RefreshToken, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "RotateRefreshToken")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertRefreshToken(ctx, tx, next); err != nil {
			return s.mapError(err)
		}

		return s.mapError(affected(tx.Exec(ctx, `UPDATE identity_refresh_tokens SET revoked_at = $2, replaced_by = $3
			WHERE id = $1 AND revoked_at IS NULL`, oldID, at, next.ID)))
	})
}

// RevokeSession revokes a refresh token and blacklists the access token
// issued with it. Repeating it changes nothing.
func (s *DB) RevokeSession(ctx context.Context, refreshID int64, entry entity.BlacklistEntry) (err error) {
	ctx, span := s.startSpan(ctx, "RevokeSession")
	defer func() { s.endSpan(span, err) }()

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE identity_refresh_tokens SET revoked_at = $2
			WHERE id = $1 AND revoked_at IS NULL`, refreshID, entry.BlacklistedAt); err != nil {
			return s.mapError(err)
		}

		_, err := tx.Exec(ctx, `INSERT INTO identity_blacklisted_access_tokens
			(token_digest, jti, user_id, reason, blacklisted_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (token_digest) DO NOTHING`,
			entry.TokenDigest, entry.JTI, entry.UserID, entry.Reason, entry.BlacklistedAt, entry.ExpiresAt)
		return s.mapError(err)
	})
}

func consumeOTP(ctx context.Context, tx pgx.Tx, rec entity.OTPRecord, at time.Time) error {
	if err := invalidateOTP(ctx, tx, rec.ID, at); err != nil {
		return err
	}
	return invalidateOTPs(ctx, tx, rec.SubjectRef, rec.Purpose, at)
}

func setPassword(ctx context.Context, tx pgx.Tx, userID int64, hash string, at time.Time) error {
	if err := affected(tx.Exec(ctx, `UPDATE identity_users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, hash, at)); err != nil {
		return err
	}
	return revokeAllRefreshTokens(ctx, tx, userID, at)
}
