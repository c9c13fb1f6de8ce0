package inbound

import (
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/router"
)

// HTTPEndpoint adapts the identity usecases to JSON over HTTP.
type HTTPEndpoint struct {
	uc uc
}

func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Register(r.Context(), usecase.RegisterInput(req))
	if err != nil {
		return nil, err
	}

	return OpaqueKeyResponse{OpaqueKey: out.OpaqueKey, msg: "Registration successful. A verification code has been sent."}, nil
}

func (h *HTTPEndpoint) RegisterVerify(r *router.Request) (any, error) {
	var req VerifyCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	pair, err := h.uc.RegisterVerify(r.Context(), usecase.VerifyCodeInput(req))
	if err != nil {
		return nil, err
	}

	return newTokenResponse(pair), nil
}

func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Login(r.Context(), usecase.LoginInput(req))
	if err != nil {
		return nil, err
	}

	if out.ActivationRequired {
		return LoginResponse{OpaqueKey: out.OpaqueKey, ActivationRequired: true}, nil
	}

	return LoginResponse{
		AccessToken:  out.Tokens.AccessToken,
		RefreshToken: out.Tokens.RefreshToken,
		ExpiresAt:    &out.Tokens.ExpiresAt,
	}, nil
}

func (h *HTTPEndpoint) RefreshToken(r *router.Request) (any, error) {
	var req RefreshTokenRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	pair, err := h.uc.RefreshToken(r.Context(), usecase.RefreshTokenInput(req))
	if err != nil {
		return nil, err
	}

	return newTokenResponse(pair), nil
}

// Logout takes the access token from the body, or from the Authorization
// header when the body leaves it out.
func (h *HTTPEndpoint) Logout(r *router.Request) (any, error) {
	var req LogoutRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if req.AccessToken == "" {
		req.AccessToken = r.Bearer()
	}

	if err := h.uc.Logout(r.Context(), usecase.LogoutInput(req)); err != nil {
		return nil, err
	}

	return nil, nil
}

func (h *HTTPEndpoint) PasswordForgot(r *router.Request) (any, error) {
	var req PasswordForgotRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.PasswordForgot(r.Context(), usecase.PasswordForgotInput(req))
	if err != nil {
		return nil, err
	}

	return OpaqueKeyResponse{OpaqueKey: out.OpaqueKey, msg: "A verification code has been sent."}, nil
}

func (h *HTTPEndpoint) PasswordForgotVerify(r *router.Request) (any, error) {
	var req VerifyCodeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.PasswordForgotVerify(r.Context(), usecase.VerifyCodeInput(req))
	if err != nil {
		return nil, err
	}

	return PasswordForgotVerifyResponse{ConfirmToken: out.ConfirmToken}, nil
}

func (h *HTTPEndpoint) PasswordReset(r *router.Request) (any, error) {
	var req PasswordResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordReset(r.Context(), usecase.PasswordResetInput(req)); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true, msg: "Password has been reset"}, nil
}

func (h *HTTPEndpoint) PasswordChange(r *router.Request) (any, error) {
	var req PasswordChangeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordChange(r.Context(), usecase.PasswordChangeInput(req)); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true, msg: "Password has been changed"}, nil
}

func (h *HTTPEndpoint) OTPResend(r *router.Request) (any, error) {
	var req OTPResendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.OTPResend(r.Context(), usecase.OTPResendInput(req))
	if err != nil {
		return nil, err
	}

	return OpaqueKeyResponse{OpaqueKey: out.OpaqueKey, msg: "A new verification code has been sent."}, nil
}

func (h *HTTPEndpoint) Profile(r *router.Request) (any, error) {
	user, err := h.uc.Profile(r.Context())
	if err != nil {
		return nil, err
	}

	return ProfileResponse{
		ID:          user.ID,
		PhoneNumber: user.PhoneNumber,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		MiddleName:  user.MiddleName,
		BirthDate:   user.BirthDate.Format(time.DateOnly),
		Email:       user.Email,
		Role:        user.Role.String(),
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
	}, nil
}

func (h *HTTPEndpoint) UserRoleUpdate(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	var req UserRoleRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.UserRoleUpdate(r.Context(), usecase.UserRoleInput{UserID: id, Role: req.Role}); err != nil {
		return nil, err
	}

	return SuccessResponse{Success: true, msg: "Role has been updated"}, nil
}

func (h *HTTPEndpoint) OTPSweep(r *router.Request) (any, error) {
	out, err := h.uc.OTPSweep(r.Context())
	if err != nil {
		return nil, err
	}

	return OTPSweepResponse(*out), nil
}
