package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type RefreshTokenInput struct {
	RefreshToken string `validate:"required,len=64,hexadecimal"`
}

// RefreshToken rotates a refresh token. Presenting one that was already
// rotated means it leaked, so every session of the user is revoked.
func (s *Usecase) RefreshToken(ctx context.Context, in RefreshTokenInput) (*entity.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "RefreshToken")
	defer span.End()

	in.RefreshToken = strings.ToLower(strings.TrimSpace(in.RefreshToken))
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	errInvalid := goerror.NewBusinessKind("Invalid refresh token", goerror.CodeUnauthorized, kindInvalidToken)

	rt, err := s.repoDB.GetRefreshToken(ctx, s.hmac.Digest(in.RefreshToken))
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get refresh token", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()

	if rt.IsRevoked() {
		if rt.ReplacedBy == nil {
			return nil, errInvalid
		}

		slog.WarnContext(ctx, "rotated refresh token reused", "user_id", rt.UserID, "refresh_id", rt.ID)
		if err := s.repoDB.RevokeAllRefreshTokens(ctx, rt.UserID, now); err != nil {
			slog.ErrorContext(ctx, "failed to repo revoke all refresh tokens", "user_id", rt.UserID, "error", err)
			return nil, goerror.NewServer(err)
		}
		return nil, goerror.NewBusinessKind("Refresh token reuse detected", goerror.CodeForbidden, kindInvalidToken)
	}

	if !rt.ExpiresAt.After(now) {
		return nil, errInvalid
	}

	user, err := s.repoDB.GetUserByID(ctx, rt.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", rt.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	pair, next, err := s.mintTokens(*user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint tokens", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	err = s.repoDB.RotateRefreshToken(ctx, rt.ID, next, now)
	if errors.Is(err, goerror.ErrNotFound) {
		// lost a race with another rotation of the same token
		return nil, errInvalid
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo rotate refresh token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return pair, nil
}
