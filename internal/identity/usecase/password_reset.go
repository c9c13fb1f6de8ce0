package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type PasswordResetInput struct {
	ConfirmToken    string `validate:"required,len=64,hexadecimal"`
	NewPassword     string `validate:"required,password"`
	ConfirmPassword string `validate:"required"`
}

// PasswordReset sets a new password with a confirm token from
// PasswordForgotVerify. Every refresh token of the user is revoked.
func (s *Usecase) PasswordReset(ctx context.Context, in PasswordResetInput) error {
	ctx, span := s.startSpan(ctx, "PasswordReset")
	defer span.End()

	in.ConfirmToken = strings.ToLower(strings.TrimSpace(in.ConfirmToken))
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.NewPassword != in.ConfirmPassword {
		return errPasswordMismatch
	}

	rec, err := s.RedeemConfirmToken(ctx, in.ConfirmToken)
	if err != nil {
		return err
	}

	hashed, err := s.bcrypt.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	err = s.repoDB.ResetPasswordByConfirm(ctx, *rec, string(hashed), now)
	if errors.Is(err, goerror.ErrNotFound) {
		return goerror.NewBusinessKind("Confirm token is invalid", goerror.CodeBadRequest, kindNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo reset password", "user_id", rec.UserID, "error", err)
		return goerror.NewServer(err)
	}

	s.publishPasswordChanged(ctx, rec.UserID, "reset")

	return nil
}

func (s *Usecase) publishPasswordChanged(ctx context.Context, userID int64, reason string) {
	user, err := s.repoDB.GetUserByID(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user for password event", "user_id", userID, "error", err)
		return
	}

	if err := s.repoMessaging.PublishPasswordChanged(ctx, PasswordChangedEvent{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Email:       user.Email,
		Reason:      reason,
		ChangedAt:   s.clock.Now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish password changed", "user_id", user.ID, "error", err)
	}
}
