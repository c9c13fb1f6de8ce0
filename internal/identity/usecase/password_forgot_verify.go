package usecase

import (
	"context"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type PasswordForgotVerifyOutput struct {
	ConfirmToken string
}

func (s *Usecase) PasswordForgotVerify(ctx context.Context, in VerifyCodeInput) (*PasswordForgotVerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "PasswordForgotVerify")
	defer span.End()

	in.normalize()
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	res, err := s.Verify(ctx, in.OpaqueKey, in.Code, entity.OTPPurposePasswordResetRequest)
	if err != nil {
		return nil, err
	}
	if res.Outcome != entity.VerifySuccess {
		return nil, outcomeError(res.Outcome)
	}

	return &PasswordForgotVerifyOutput{ConfirmToken: res.ConfirmToken}, nil
}
