package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

func (s *DB) UpdateUserRole(ctx context.Context, id int64, role entity.Role, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserRole")
	defer func() { s.endSpan(span, err) }()

	return s.mapError(affected(s.conn.Exec(ctx,
		`UPDATE identity_users SET role = $2, updated_at = $3 WHERE id = $1`, id, int16(role), at)))
}

// ReserveOTPAttempt counts one submission against the record and returns the
// new count. A record that is invalidated or already at maxAttempts reports
// goerror.ErrNotFound.
func (s *DB) ReserveOTPAttempt(ctx context.Context, id int64, maxAttempts int) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "ReserveOTPAttempt")
	defer func() { s.endSpan(span, err) }()

	var attempts int
	err = s.conn.QueryRow(ctx, `UPDATE identity_otps SET attempts = attempts + 1
		WHERE id = $1 AND deleted_at IS NULL AND attempts < $2 RETURNING attempts`, id, maxAttempts).Scan(&attempts)
	if err != nil {
		return 0, s.mapError(err)
	}
	return attempts, nil
}

func (s *DB) InvalidateOTP(ctx context.Context, id int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "InvalidateOTP")
	defer func() { s.endSpan(span, err) }()

	return s.mapError(invalidateOTP(ctx, s.conn, id, at))
}

func invalidateOTP(ctx context.Context, q querier, id int64, at time.Time) error {
	return affected(q.Exec(ctx,
		`UPDATE identity_otps SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at))
}

func invalidateOTPs(ctx context.Context, q querier, subject string, purpose entity.OTPPurpose, at time.Time) error {
	_, err := q.Exec(ctx, `UPDATE identity_otps SET deleted_at = $3
		WHERE subject_ref = $1 AND purpose = $2 AND deleted_at IS NULL`, subject, int16(purpose), at)
	return err
}

// SweepOTPs invalidates every active record created before createdBefore.
func (s *DB) SweepOTPs(ctx context.Context, createdBefore, at time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "SweepOTPs")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE identity_otps SET deleted_at = $2
		WHERE deleted_at IS NULL AND created_at < $1`, createdBefore, at)
	if err != nil {
		return 0, s.mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *DB) PruneBlacklist(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "PruneBlacklist")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM identity_blacklisted_access_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, s.mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *DB) RevokeAllRefreshTokens(ctx context.Context, userID int64, at time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "RevokeAllRefreshTokens")
	defer func() { s.endSpan(span, err) }()

	return s.mapError(revokeAllRefreshTokens(ctx, s.conn, userID, at))
}

func revokeAllRefreshTokens(ctx context.Context, q querier, userID int64, at time.Time) error {
	_, err := q.Exec(ctx, `UPDATE identity_refresh_tokens SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`, userID, at)
	return err
}
