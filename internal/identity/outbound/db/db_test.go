package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "+998901234567"

var (
	now     = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	otpCols = []string{"id", "subject_ref", "user_id", "purpose", "code_hash", "opaque_key", "confirm_token_hash", "attempts", "created_at", "deleted_at"}
)

func newMock(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	return NewDB(mock, instrument.NewNoop()), mock
}

func q(sql string) string { return regexp.QuoteMeta(sql) }

func TestDB_GetUserByPhone(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		birth := time.Date(2012, 5, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(q("FROM identity_users WHERE phone_number = $1")).
			WithArgs(testPhone).
			WillReturnRows(pgxmock.NewRows([]string{"id", "phone_number", "first_name", "last_name", "middle_name", "birth_date", "email", "password_hash", "role", "is_active", "created_at", "updated_at"}).
				AddRow(int64(7), testPhone, "Ali", "Valiyev", "", birth, nil, "$2a$04$hash", int16(2), true, now, now))

		u, err := db.GetUserByPhone(context.Background(), testPhone)
		require.NoError(t, err)
		assert.Equal(t, int64(7), u.ID)
		assert.Equal(t, entity.RoleJury, u.Role)
		assert.Empty(t, u.Email)
		assert.True(t, u.IsActive)
		assert.Equal(t, birth, u.BirthDate)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(q("FROM identity_users WHERE phone_number = $1")).
			WithArgs(testPhone).
			WillReturnError(pgx.ErrNoRows)

		_, err := db.GetUserByPhone(context.Background(), testPhone)
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})
}

func TestDB_CreateUser_Conflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("INSERT INTO identity_users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := db.CreateUser(context.Background(), entity.User{ID: 1, PhoneNumber: testPhone, Role: entity.RoleCandidate})
	assert.ErrorIs(t, err, goerror.ErrConflict)
}

func activeRow(rows *pgxmock.Rows, id int64, createdAt time.Time) *pgxmock.Rows {
	return rows.AddRow(id, testPhone, int64(7), int16(1), "code-hash", "key-hash", nil, 0, createdAt, nil)
}

func TestDB_CreateOTP(t *testing.T) {
	rec := entity.OTPRecord{
		ID:            100,
		SubjectRef:    testPhone,
		UserID:        7,
		Purpose:       entity.OTPPurposeRegister,
		CodeHash:      "new-code-hash",
		OpaqueKeyHash: "new-key-hash",
		CreatedAt:     now,
		State:         entity.OTPActive{},
	}

	expectLocked := func(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
		mock.ExpectBegin()
		mock.ExpectExec(q("SELECT pg_advisory_xact_lock(hashtext($1))")).
			WithArgs("otp:1:" + testPhone).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectQuery(q("FROM identity_otps")).
			WithArgs(testPhone, int16(1)).
			WillReturnRows(rows)
	}

	t.Run("allow inserts", func(t *testing.T) {
		db, mock := newMock(t)
		expectLocked(mock, activeRow(pgxmock.NewRows(otpCols), 1, now.Add(-time.Hour)))
		mock.ExpectExec(q("INSERT INTO identity_otps")).
			WithArgs(int64(100), testPhone, int64(7), int16(1), "new-code-hash", "new-key-hash", "", 0, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		var seen []entity.OTPRecord
		d, err := db.CreateOTP(context.Background(), rec, func(active []entity.OTPRecord) entity.Decision {
			seen = active
			return entity.DecisionAllow
		})
		require.NoError(t, err)
		assert.Equal(t, entity.DecisionAllow, d)
		require.Len(t, seen, 1)
		assert.True(t, seen[0].IsActive())
		assert.Equal(t, entity.OTPPurposeRegister, seen[0].Purpose)
	})

	t.Run("rotate invalidates first", func(t *testing.T) {
		db, mock := newMock(t)
		rows := pgxmock.NewRows(otpCols)
		for i := range 3 {
			activeRow(rows, int64(i+1), now.Add(-13*time.Hour))
		}
		expectLocked(mock, rows)
		mock.ExpectExec(q("UPDATE identity_otps SET deleted_at = $3")).
			WithArgs(testPhone, int16(1), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))
		mock.ExpectExec(q("INSERT INTO identity_otps")).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		d, err := db.CreateOTP(context.Background(), rec, func(active []entity.OTPRecord) entity.Decision {
			return entity.DecisionMustRotate
		})
		require.NoError(t, err)
		assert.Equal(t, entity.DecisionMustRotate, d)
	})

	t.Run("rejection writes nothing", func(t *testing.T) {
		db, mock := newMock(t)
		expectLocked(mock, activeRow(pgxmock.NewRows(otpCols), 1, now))
		mock.ExpectRollback()

		d, err := db.CreateOTP(context.Background(), rec, func(active []entity.OTPRecord) entity.Decision {
			return entity.DecisionTooSoon
		})
		require.NoError(t, err)
		assert.Equal(t, entity.DecisionTooSoon, d)
	})
}

func TestDB_GetActiveOTPByKey_Invalidated(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("WHERE opaque_key = $1 AND purpose = $2 AND deleted_at IS NULL")).
		WithArgs("key-hash", int16(2)).
		WillReturnError(pgx.ErrNoRows)

	_, err := db.GetActiveOTPByKey(context.Background(), "key-hash", entity.OTPPurposePasswordResetRequest)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_ReserveOTPAttempt(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("SET attempts = attempts + 1 WHERE id = $1 AND deleted_at IS NULL AND attempts < $2")).
		WithArgs(int64(5), 3).
		WillReturnRows(pgxmock.NewRows([]string{"attempts"}).AddRow(2))
	mock.ExpectQuery(q("SET attempts = attempts + 1 WHERE id = $1 AND deleted_at IS NULL AND attempts < $2")).
		WithArgs(int64(6), 3).
		WillReturnError(pgx.ErrNoRows)

	n, err := db.ReserveOTPAttempt(context.Background(), 5, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = db.ReserveOTPAttempt(context.Background(), 6, 3)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_InvalidateOTP_AlreadyInvalidated(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE identity_otps SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(int64(5), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := db.InvalidateOTP(context.Background(), 5, now)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_ActivateUserByOTP(t *testing.T) {
	rec := entity.OTPRecord{ID: 5, SubjectRef: testPhone, UserID: 7, Purpose: entity.OTPPurposeRegister}

	t.Run("consumes and activates", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(int64(5), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(q("WHERE subject_ref = $1 AND purpose = $2 AND deleted_at IS NULL")).
			WithArgs(testPhone, int16(1), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(q("UPDATE identity_users SET is_active = TRUE")).
			WithArgs(int64(7), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, db.ActivateUserByOTP(context.Background(), rec, now))
	})

	t.Run("lost race", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(q("WHERE id = $1 AND deleted_at IS NULL")).
			WithArgs(int64(5), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := db.ActivateUserByOTP(context.Background(), rec, now)
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})
}

func TestDB_ResetPasswordByConfirm(t *testing.T) {
	db, mock := newMock(t)
	rec := entity.OTPRecord{ID: 9, SubjectRef: testPhone, UserID: 7, Purpose: entity.OTPPurposePasswordResetConfirm}

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE identity_otps SET deleted_at = $2 WHERE id = $1")).
		WithArgs(int64(9), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q("UPDATE identity_users SET password_hash = $2")).
		WithArgs(int64(7), "new-hash", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q("UPDATE identity_refresh_tokens SET revoked_at = $2")).
		WithArgs(int64(7), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	require.NoError(t, db.ResetPasswordByConfirm(context.Background(), rec, "new-hash", now))
}

func TestDB_RotateRefreshToken_LostRace(t *testing.T) {
	db, mock := newMock(t)
	next := entity.RefreshToken{ID: 2, UserID: 7, TokenHash: "next", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO identity_refresh_tokens")).
		WithArgs(int64(2), int64(7), "next", next.ExpiresAt, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(q("SET revoked_at = $2, replaced_by = $3")).
		WithArgs(int64(1), now, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := db.RotateRefreshToken(context.Background(), 1, next, now)
	assert.ErrorIs(t, err, goerror.ErrNotFound)
}

func TestDB_GetRefreshToken(t *testing.T) {
	db, mock := newMock(t)
	revoked := now.Add(-time.Minute)

	mock.ExpectQuery(q("FROM identity_refresh_tokens WHERE token_hash = $1")).
		WithArgs("digest").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "replaced_by", "created_at"}).
			AddRow(int64(1), int64(7), "digest", now.Add(time.Hour), pgtype.Timestamptz{Time: revoked, Valid: true}, pgtype.Int8{Int64: 2, Valid: true}, now))

	rt, err := db.GetRefreshToken(context.Background(), "digest")
	require.NoError(t, err)
	assert.True(t, rt.IsRevoked())
	require.NotNil(t, rt.ReplacedBy)
	assert.Equal(t, int64(2), *rt.ReplacedBy)
	assert.Equal(t, revoked, *rt.RevokedAt)
}

func TestDB_RevokeSession(t *testing.T) {
	db, mock := newMock(t)
	entry := entity.BlacklistEntry{TokenDigest: "d", JTI: "j", UserID: 7, Reason: "logout", BlacklistedAt: now, ExpiresAt: now.Add(15 * time.Minute)}

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE identity_refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL")).
		WithArgs(int64(1), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(q("ON CONFLICT (token_digest) DO NOTHING")).
		WithArgs("d", "j", int64(7), "logout", now, entry.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	require.NoError(t, db.RevokeSession(context.Background(), 1, entry))
}

func TestDB_SweepAndPrune(t *testing.T) {
	db, mock := newMock(t)
	cutoff := now.Add(-12 * time.Hour)

	mock.ExpectExec(q("WHERE deleted_at IS NULL AND created_at < $1")).
		WithArgs(cutoff, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))
	mock.ExpectExec(q("DELETE FROM identity_blacklisted_access_tokens WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := db.SweepOTPs(context.Background(), cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = db.PruneBlacklist(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
