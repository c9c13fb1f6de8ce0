package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
)

type RegisterInput struct {
	PhoneNumber     string `validate:"required,uzphone"`
	FirstName       string `validate:"required,min=2,max=50,alphaspace"`
	LastName        string `validate:"required,min=2,max=50,alphaspace"`
	MiddleName      string `validate:"omitempty,max=50,alphaspace"`
	BirthDate       string `validate:"required,pastdate"`
	Email           string `validate:"omitempty,email,max=100"`
	Password        string `validate:"required,password"`
	ConfirmPassword string `validate:"required"`
}

type RegisterOutput struct {
	OpaqueKey string
}

// Register creates an inactive account and sends it an activation code.
func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.Password != in.ConfirmPassword {
		return nil, errPasswordMismatch
	}

	birthDate, err := time.Parse(time.DateOnly, in.BirthDate)
	if err != nil {
		return nil, goerror.NewInvalidInput(nil, "birth_date", "birth_date must be a past date formatted as YYYY-MM-DD")
	}

	existing, err := s.repoDB.GetUserByPhone(ctx, in.PhoneNumber)
	if err == nil {
		if existing.IsActive {
			return nil, goerror.NewBusiness("Phone number already registered", goerror.CodeConflict)
		}
		return nil, goerror.NewBusiness("Account is not activated, sign in to receive a new code", goerror.CodeConflict)
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get user by phone", "error", err)
		return nil, goerror.NewServer(err)
	}

	hashed, err := s.bcrypt.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	user := entity.User{
		ID:           s.uid.Generate(),
		PhoneNumber:  in.PhoneNumber,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		MiddleName:   in.MiddleName,
		BirthDate:    birthDate,
		Email:        in.Email,
		PasswordHash: string(hashed),
		Role:         entity.RoleCandidate,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repoDB.CreateUser(ctx, user); errors.Is(err, goerror.ErrConflict) {
		return nil, goerror.NewBusiness("Phone number or email already registered", goerror.CodeConflict)
	} else if err != nil {
		slog.ErrorContext(ctx, "failed to repo create user", "error", err)
		return nil, goerror.NewServer(err)
	}

	issued, err := s.Issue(ctx, IssueRequest{
		SubjectRef: user.PhoneNumber,
		UserID:     user.ID,
		Purpose:    entity.OTPPurposeRegister,
	})
	if err != nil {
		return nil, err
	}

	return &RegisterOutput{OpaqueKey: issued.OpaqueKey}, nil
}
