package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type VerifyCodeInput struct {
	OpaqueKey string `validate:"required,len=64,hexadecimal"`
	Code      string `validate:"required,otpcode"`
}

func (in *VerifyCodeInput) normalize() {
	in.OpaqueKey = strings.ToLower(strings.TrimSpace(in.OpaqueKey))
	in.Code = strings.TrimSpace(in.Code)
}

// RegisterVerify activates the account behind the code and signs it in.
func (s *Usecase) RegisterVerify(ctx context.Context, in VerifyCodeInput) (*entity.TokenPair, error) {
	ctx, span := s.startSpan(ctx, "RegisterVerify")
	defer span.End()

	in.normalize()
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	res, err := s.Verify(ctx, in.OpaqueKey, in.Code, entity.OTPPurposeRegister)
	if err != nil {
		return nil, err
	}
	if res.Outcome != entity.VerifySuccess {
		return nil, outcomeError(res.Outcome)
	}

	user, err := s.repoDB.GetUserByID(ctx, res.Record.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by id", "user_id", res.Record.UserID, "error", err)
		return nil, goerror.NewServer(err)
	}

	pair, err := s.IssueTokens(ctx, *user)
	if err != nil {
		return nil, err
	}

	if err := s.repoMessaging.PublishUserActivated(ctx, UserActivatedEvent{
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Email:       user.Email,
		FullName:    user.FullName(),
		ActivatedAt: s.clock.Now(),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish user activated", "user_id", user.ID, "error", err)
	}

	return pair, nil
}
