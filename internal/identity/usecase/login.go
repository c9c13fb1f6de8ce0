package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type LoginInput struct {
	PhoneNumber string `validate:"required,uzphone"`
	Password    string `validate:"required,max=72"`
}

// LoginOutput carries tokens, or an activation code key when the account
// still has to be activated.
type LoginOutput struct {
	Tokens             *entity.TokenPair
	OpaqueKey          string
	ActivationRequired bool
}

func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	errCredential := goerror.NewBusiness("Invalid phone number or password", goerror.CodeUnauthorized)

	user, err := s.repoDB.GetUserByPhone(ctx, in.PhoneNumber)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, errCredential
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.bcrypt.Verify(user.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "login with wrong password", "user_id", user.ID)
		return nil, errCredential
	}

	if !user.IsActive {
		issued, err := s.Issue(ctx, IssueRequest{
			SubjectRef: user.PhoneNumber,
			UserID:     user.ID,
			Purpose:    entity.OTPPurposeRegister,
			Throttle:   true,
		})
		if err != nil {
			return nil, err
		}
		return &LoginOutput{OpaqueKey: issued.OpaqueKey, ActivationRequired: true}, nil
	}

	pair, err := s.IssueTokens(ctx, *user)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{Tokens: pair}, nil
}
