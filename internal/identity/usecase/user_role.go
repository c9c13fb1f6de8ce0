package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
)

type UserRoleInput struct {
	UserID int64  `validate:"required,gt=0"`
	Role   string `validate:"required,oneof=none candidate jury admin"`
}

// UserRoleUpdate takes effect on the user's next token; access tokens
// already issued keep their role until they expire.
func (s *Usecase) UserRoleUpdate(ctx context.Context, in UserRoleInput) error {
	ctx, span := s.startSpan(ctx, "UserRoleUpdate")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return errAuthRequired
	}

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	role, ok := entity.ParseRole(in.Role)
	if !ok {
		return goerror.NewInvalidInput(nil, "role", "role is not supported")
	}

	if in.UserID == clm.UserID && role != entity.RoleAdmin {
		return goerror.NewBusiness("Admins cannot demote themselves", goerror.CodeForbidden)
	}

	err := s.repoDB.UpdateUserRole(ctx, in.UserID, role, s.clock.Now())
	if errors.Is(err, goerror.ErrNotFound) {
		return errUserNotFound
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update user role", "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "user role updated", "user_id", in.UserID, "role", role.String(), "by", clm.UserID)
	return nil
}
