package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/identity/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/router"
)

type uc interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error)
	RegisterVerify(ctx context.Context, in usecase.VerifyCodeInput) (*entity.TokenPair, error)

	PasswordForgot(ctx context.Context, in usecase.PasswordForgotInput) (*usecase.PasswordForgotOutput, error)
	PasswordForgotVerify(ctx context.Context, in usecase.VerifyCodeInput) (*usecase.PasswordForgotVerifyOutput, error)
	PasswordReset(ctx context.Context, in usecase.PasswordResetInput) error
	PasswordChange(ctx context.Context, in usecase.PasswordChangeInput) error

	OTPResend(ctx context.Context, in usecase.OTPResendInput) (*usecase.OTPResendOutput, error)
	OTPSweep(ctx context.Context) (*usecase.OTPSweepOutput, error)

	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	RefreshToken(ctx context.Context, in usecase.RefreshTokenInput) (*entity.TokenPair, error)
	Logout(ctx context.Context, in usecase.LogoutInput) error

	Profile(ctx context.Context) (*entity.User, error)
	UserRoleUpdate(ctx context.Context, in usecase.UserRoleInput) error
}

const (
	prefix      = "/api/v1/identity"
	adminPrefix = "/api/v1/admin/identity"
)

// Routes is the identity route table. Access rules live here and nowhere
// else; the router turns them into its authorization policy.
func Routes(end *HTTPEndpoint) []router.Route {
	public := func(method, path string, h router.Handler) router.Route {
		return router.Route{Method: method, Path: prefix + path, Access: router.AccessPublic, Handler: h}
	}
	admin := func(method, path string, h router.Handler) router.Route {
		return router.Route{Method: method, Path: adminPrefix + path, Access: router.AccessRoles, Roles: []string{entity.RoleAdmin.String()}, Handler: h}
	}

	logout := public(http.MethodPost, "/logout", end.Logout)
	logout.Status = http.StatusResetContent

	return []router.Route{
		public(http.MethodPost, "/register", end.Register),
		public(http.MethodPost, "/register/verify", end.RegisterVerify),
		public(http.MethodPost, "/login", end.Login),
		public(http.MethodPost, "/token/refresh", end.RefreshToken),
		logout,

		public(http.MethodPost, "/password/forgot", end.PasswordForgot),
		public(http.MethodPost, "/password/forgot/verify", end.PasswordForgotVerify),
		public(http.MethodPost, "/password/reset", end.PasswordReset),
		public(http.MethodPost, "/otp/resend", end.OTPResend),

		{Method: http.MethodGet, Path: prefix + "/me", Access: router.AccessAuthenticated, Handler: end.Profile},
		{Method: http.MethodPost, Path: prefix + "/password/change", Access: router.AccessAuthenticated, Handler: end.PasswordChange},

		admin(http.MethodPut, "/users/:id/role", end.UserRoleUpdate),
		admin(http.MethodPost, "/otp/sweep", end.OTPSweep),
	}
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	r.Register(Routes(&HTTPEndpoint{uc: uc})...)
}
