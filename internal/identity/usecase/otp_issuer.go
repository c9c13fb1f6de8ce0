package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/lock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type IssueRequest struct {
	SubjectRef string            `validate:"required,uzphone"`
	UserID     int64             `validate:"required"`
	Purpose    entity.OTPPurpose `validate:"required"`
	// Supersedes is the record being resent. It is invalidated once the new
	// code is delivered and is what the cooldown is measured against.
	Supersedes *entity.OTPRecord `validate:"-"`
	// Throttle applies the cooldown against the newest active record when
	// nothing is superseded.
	Throttle bool
}

type IssueResult struct {
	OpaqueKey string
	Record    entity.OTPRecord
}

// Issue creates and delivers a new code. The raw code never leaves this
// method; callers get the opaque key that identifies the record.
func (s *Usecase) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	if err := s.validator.Validate(req); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	pol := s.policy()

	code, err := s.code.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	opaqueKey := s.opaque.Generate()
	rec := entity.OTPRecord{
		ID:            s.uid.Generate(),
		SubjectRef:    req.SubjectRef,
		UserID:        req.UserID,
		Purpose:       req.Purpose,
		CodeHash:      s.hmac.Digest(code),
		OpaqueKeyHash: s.hmac.Digest(opaqueKey),
		CreatedAt:     now,
		State:         entity.OTPActive{},
	}

	var (
		decision  entity.Decision
		committed bool
	)
	lockKey := fmt.Sprintf("otp:%d:%s", req.Purpose, req.SubjectRef)
	err = s.locker.WithLock(ctx, lockKey, pol.lockTTL, func(ctx context.Context) error {
		var err error
		decision, err = s.repoDB.CreateOTP(ctx, rec, func(active []entity.OTPRecord) entity.Decision {
			existing := req.Supersedes
			if existing == nil && req.Throttle && len(active) > 0 {
				existing = &active[0]
			}
			return pol.limiter.CheckAndReserve(active, existing, now)
		})
		committed = err == nil
		return err
	})
	if err != nil && committed {
		// the record is stored; it must be delivered or compensated below
		slog.WarnContext(ctx, "otp lock release failed", "purpose", req.Purpose.String(), "user_id", req.UserID, "error", err)
		err = nil
	}
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.WarnContext(ctx, "otp issuance already in progress", "purpose", req.Purpose.String(), "user_id", req.UserID)
		return nil, errTooSoon
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create otp", "purpose", req.Purpose.String(), "user_id", req.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	switch decision {
	case entity.DecisionRateLimited:
		slog.WarnContext(ctx, "otp issuance rate limited", "purpose", req.Purpose.String(), "user_id", req.UserID)
		return nil, errRateLimited
	case entity.DecisionTooSoon:
		return nil, errTooSoon
	case entity.DecisionMustRotate:
		slog.InfoContext(ctx, "otp records rotated", "purpose", req.Purpose.String(), "user_id", req.UserID)
	}

	if err := s.dispatch(ctx, pol, rec, code); err != nil {
		slog.ErrorContext(ctx, "failed to dispatch otp", "otp_id", rec.ID, "error", err)
		if ierr := s.repoDB.InvalidateOTP(context.WithoutCancel(ctx), rec.ID, s.clock.Now()); ierr != nil {
			slog.ErrorContext(ctx, "failed to repo invalidate undelivered otp", "otp_id", rec.ID, "error", ierr)
		}
		return nil, errDispatchFailed
	}

	if req.Supersedes != nil {
		if err := s.repoDB.InvalidateOTP(ctx, req.Supersedes.ID, now); err != nil && !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo invalidate superseded otp", "otp_id", req.Supersedes.ID, "error", err)
		}
	}

	s.otpIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", req.Purpose.String())))

	return &IssueResult{OpaqueKey: opaqueKey, Record: rec}, nil
}

func (s *Usecase) dispatch(ctx context.Context, pol otpPolicy, rec entity.OTPRecord, code string) error {
	ctx, cancel := context.WithTimeout(ctx, pol.dispatchTimeout)
	defer cancel()

	msg := fmt.Sprintf("Konkurs: your verification code is %s. It is valid for %d minutes. Do not share it.", code, int(pol.codeTTL.Minutes()))
	return s.dispatcher.Dispatch(ctx, rec.SubjectRef, msg)
}
