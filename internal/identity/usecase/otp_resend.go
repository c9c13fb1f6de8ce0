package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type OTPResendInput struct {
	OpaqueKey string `validate:"required,len=64,hexadecimal"`
	Purpose   string `validate:"required,oneof=register forgot"`
}

type OTPResendOutput struct {
	OpaqueKey string
}

// OTPResend replaces the record behind the key with a fresh one. The old
// record stays usable until the new code has been delivered.
func (s *Usecase) OTPResend(ctx context.Context, in OTPResendInput) (*OTPResendOutput, error) {
	ctx, span := s.startSpan(ctx, "OTPResend")
	defer span.End()

	in.OpaqueKey = strings.ToLower(strings.TrimSpace(in.OpaqueKey))
	in.Purpose = strings.ToLower(strings.TrimSpace(in.Purpose))
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	purpose := entity.ParseResendPurpose(in.Purpose)

	existing, err := s.repoDB.GetActiveOTPByKey(ctx, s.hmac.Digest(in.OpaqueKey), purpose)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, outcomeError(entity.VerifyNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get active otp by key", "purpose", purpose.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	issued, err := s.Issue(ctx, IssueRequest{
		SubjectRef: existing.SubjectRef,
		UserID:     existing.UserID,
		Purpose:    purpose,
		Supersedes: existing,
	})
	if err != nil {
		return nil, err
	}

	return &OTPResendOutput{OpaqueKey: issued.OpaqueKey}, nil
}
