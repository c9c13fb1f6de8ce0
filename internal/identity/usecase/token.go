package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
)

// IssueTokens mints an access token with the user's role and activation
// state and stores a new refresh token for it.
func (s *Usecase) IssueTokens(ctx context.Context, user entity.User) (*entity.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "IssueTokens")
	defer span.End()

	pair, rt, err := s.mintTokens(user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint tokens", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.CreateRefreshToken(ctx, rt); err != nil {
		slog.ErrorContext(ctx, "failed to repo create refresh token", "user_id", user.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return pair, nil
}

func (s *Usecase) mintTokens(user entity.User) (*entity.TokenPair, entity.RefreshToken, error) {
	access, err := s.jwt.Generate(jwt.Subject{
		UserID:   user.ID,
		Role:     user.Role.String(),
		IsActive: user.IsActive,
	})
	if err != nil {
		return nil, entity.RefreshToken{}, err
	}

	now := s.clock.Now()
	refresh := s.opaque.Generate()
	rt := entity.RefreshToken{
		ID:        s.uid.Generate(),
		UserID:    user.ID,
		TokenHash: s.hmac.Digest(refresh),
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
	}

	return &entity.TokenPair{
		AccessToken:  access.Value,
		RefreshToken: refresh,
		ExpiresAt:    access.ExpiresAt,
	}, rt, nil
}

// Revoke ends a session. Both tokens are checked before anything is
// written; then the refresh token is revoked and the access token
// blacklisted in one transaction. Repeating it is harmless.
func (s *Usecase) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "Revoke")
	defer span.End()

	clm, err := s.jwt.Verify(accessToken)
	if err != nil {
		slog.WarnContext(ctx, "logout with invalid access token", "error", err)
		return errInvalidToken
	}

	rt, err := s.repoDB.GetRefreshToken(ctx, s.hmac.Digest(refreshToken))
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "logout with unknown refresh token", "user_id", clm.UserID)
		return errInvalidToken
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get refresh token", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	if rt.UserID != clm.UserID || !rt.ExpiresAt.After(now) {
		slog.WarnContext(ctx, "logout with mismatched or expired refresh token", "user_id", clm.UserID, "refresh_user_id", rt.UserID)
		return errInvalidToken
	}

	expiresAt := now
	if clm.ExpiresAt != nil {
		expiresAt = clm.ExpiresAt.Time
	}

	entry := entity.BlacklistEntry{
		TokenDigest:   s.revoker.Digest(accessToken),
		JTI:           clm.ID,
		UserID:        clm.UserID,
		Reason:        "logout",
		BlacklistedAt: now,
		ExpiresAt:     expiresAt,
	}
	if err := s.repoDB.RevokeSession(ctx, rt.ID, entry); err != nil {
		slog.ErrorContext(ctx, "failed to repo revoke session", "user_id", clm.UserID, "error", err)
		return goerror.NewServer(err)
	}

	s.revoker.Remember(ctx, entry.TokenDigest, entry.ExpiresAt)

	return nil
}

// IsBlacklisted is what the auth gate asks before trusting a bearer token.
func (s *Usecase) IsBlacklisted(ctx context.Context, accessToken string) (bool, error) {
	ctx, span := s.startSpan(ctx, "IsBlacklisted")
	defer span.End()

	return s.revoker.IsRevoked(ctx, accessToken)
}
