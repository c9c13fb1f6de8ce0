package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type VerifyResult struct {
	Outcome entity.VerifyOutcome
	Record  *entity.OTPRecord
	// ConfirmToken is set on a successful password reset request.
	ConfirmToken string
}

// Verify checks code against the active record behind opaqueKey. Domain
// outcomes come back in the result; the error is for infrastructure only.
//
// The checks run in a fixed order: lookup, attempt bound, code, expiry. Every
// submission reserves an attempt in the store before the code is compared, so
// concurrent guesses share the bound. A record at MaxAttempts is exhausted
// even for the right code.
func (s *Usecase) Verify(ctx context.Context, opaqueKey, code string, purpose entity.OTPPurpose) (*VerifyResult, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	res, err := s.verify(ctx, s.policy(), opaqueKey, code, purpose)
	if err != nil {
		return nil, err
	}

	s.otpVerified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose.String()),
		attribute.String("outcome", res.Outcome.String()),
	))
	return res, nil
}

func (s *Usecase) verify(ctx context.Context, pol otpPolicy, opaqueKey, code string, purpose entity.OTPPurpose) (*VerifyResult, error) {
	notFound := &VerifyResult{Outcome: entity.VerifyNotFound}

	rec, err := s.repoDB.GetActiveOTPByKey(ctx, s.hmac.Digest(opaqueKey), purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return notFound, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get active otp by key", "purpose", purpose.String(), "error", err)
		return nil, goerror.NewServer(err)
	}
	if !rec.IsActive() {
		return notFound, nil
	}

	if rec.Attempts >= pol.maxAttempts {
		slog.WarnContext(ctx, "otp attempts exhausted", "otp_id", rec.ID, "attempts", rec.Attempts)
		return &VerifyResult{Outcome: entity.VerifyExhausted, Record: rec}, nil
	}

	attempts, err := s.repoDB.ReserveOTPAttempt(ctx, rec.ID, pol.maxAttempts)
	if errors.Is(err, goerror.ErrNotFound) {
		// spent by concurrent submissions, or consumed by one of them
		slog.WarnContext(ctx, "otp attempts exhausted", "otp_id", rec.ID)
		return &VerifyResult{Outcome: entity.VerifyExhausted, Record: rec}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo reserve otp attempt", "otp_id", rec.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	rec.Attempts = attempts

	if !s.hmac.Verify(rec.CodeHash, code) {
		return &VerifyResult{Outcome: entity.VerifyWrongCode, Record: rec}, nil
	}

	now := s.clock.Now()
	if rec.Age(now) > pol.ttl(purpose) {
		if err := s.repoDB.InvalidateOTP(ctx, rec.ID, now); err != nil && !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo invalidate expired otp", "otp_id", rec.ID, "error", err)
			return nil, goerror.NewServer(err)
		}
		rec.State = entity.OTPInvalidated{At: now}
		return &VerifyResult{Outcome: entity.VerifyExpired, Record: rec}, nil
	}

	res := &VerifyResult{Outcome: entity.VerifySuccess, Record: rec}

	switch purpose {
	case entity.OTPPurposeRegister:
		err = s.repoDB.ActivateUserByOTP(ctx, *rec, now)

	case entity.OTPPurposePasswordResetRequest:
		token := s.opaque.Generate()
		err = s.repoDB.ExchangeOTPForConfirm(ctx, *rec, entity.OTPRecord{
			ID:               s.uid.Generate(),
			SubjectRef:       rec.SubjectRef,
			UserID:           rec.UserID,
			Purpose:          entity.OTPPurposePasswordResetConfirm,
			OpaqueKeyHash:    s.hmac.Digest(s.opaque.Generate()),
			ConfirmTokenHash: s.hmac.Digest(token),
			CreatedAt:        now,
			State:            entity.OTPActive{},
		}, now)
		res.ConfirmToken = token

	default:
		err = s.repoDB.InvalidateOTP(ctx, rec.ID, now)
	}
	if errors.Is(err, goerror.ErrNotFound) {
		// another request consumed the record first
		return notFound, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo complete otp verification", "otp_id", rec.ID, "purpose", purpose.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	rec.State = entity.OTPInvalidated{At: now}
	return res, nil
}

func (p otpPolicy) ttl(purpose entity.OTPPurpose) time.Duration {
	if purpose == entity.OTPPurposePasswordResetConfirm {
		return p.confirmTTL
	}
	return p.codeTTL
}

// RedeemConfirmToken returns the active confirm record behind token. The
// record is consumed by the write that uses it, so a token authorizes one
// password change.
func (s *Usecase) RedeemConfirmToken(ctx context.Context, token string) (*entity.OTPRecord, error) {
	ctx, span := s.startSpan(ctx, "RedeemConfirmToken")
	defer span.End()

	rec, err := s.repoDB.GetActiveOTPByConfirmToken(ctx, s.hmac.Digest(token))
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, goerror.NewBusinessKind("Confirm token is invalid", goerror.CodeBadRequest, kindNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get otp by confirm token", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	if rec.Age(now) > s.policy().confirmTTL {
		if err := s.repoDB.InvalidateOTP(ctx, rec.ID, now); err != nil && !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo invalidate expired confirm token", "otp_id", rec.ID, "error", err)
		}
		return nil, goerror.NewBusinessKind("Confirm token has expired, start again", goerror.CodeBadRequest, kindExpired)
	}

	return rec, nil
}
