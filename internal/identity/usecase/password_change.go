package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
)

type PasswordChangeInput struct {
	OldPassword     string `validate:"required,max=72"`
	NewPassword     string `validate:"required,password"`
	ConfirmPassword string `validate:"required"`
}

func (s *Usecase) PasswordChange(ctx context.Context, in PasswordChangeInput) error {
	ctx, span := s.startSpan(ctx, "PasswordChange")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return errAuthRequired
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.NewPassword != in.ConfirmPassword {
		return errPasswordMismatch
	}

	user, err := s.repoDB.GetUserByID(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	if !s.bcrypt.Verify(user.PasswordHash, in.OldPassword) {
		return goerror.NewBusinessKind("Current password is wrong", goerror.CodeBadRequest, kindWrongPassword)
	}

	hashed, err := s.bcrypt.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return goerror.NewServer(err)
	}

	if err := s.repoDB.ChangePassword(ctx, user.ID, string(hashed), s.clock.Now()); err != nil {
		slog.ErrorContext(ctx, "failed to repo change password", "user_id", user.ID, "error", err)
		return goerror.NewServer(err)
	}

	s.publishPasswordChanged(ctx, user.ID, "change")

	return nil
}
