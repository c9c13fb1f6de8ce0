package usecase

import (
	"context"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type LogoutInput struct {
	AccessToken  string `validate:"required"`
	RefreshToken string `validate:"required"`
}

func (s *Usecase) Logout(ctx context.Context, in LogoutInput) error {
	ctx, span := s.startSpan(ctx, "Logout")
	defer span.End()

	in.AccessToken = strings.TrimSpace(in.AccessToken)
	in.RefreshToken = strings.ToLower(strings.TrimSpace(in.RefreshToken))
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	return s.Revoke(ctx, in.AccessToken, in.RefreshToken)
}
