package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type PasswordForgotInput struct {
	PhoneNumber string `validate:"required,uzphone"`
}

type PasswordForgotOutput struct {
	OpaqueKey string
}

func (s *Usecase) PasswordForgot(ctx context.Context, in PasswordForgotInput) (*PasswordForgotOutput, error) {
	ctx, span := s.startSpan(ctx, "PasswordForgot")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	user, err := s.repoDB.GetUserByPhone(ctx, in.PhoneNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	issued, err := s.Issue(ctx, IssueRequest{
		SubjectRef: user.PhoneNumber,
		UserID:     user.ID,
		Purpose:    entity.OTPPurposePasswordResetRequest,
	})
	if err != nil {
		return nil, err
	}

	return &PasswordForgotOutput{OpaqueKey: issued.OpaqueKey}, nil
}
