package inbound

import (
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

type RegisterRequest struct {
	PhoneNumber     string `json:"phone_number"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	MiddleName      string `json:"middle_name"`
	BirthDate       string `json:"birth_date"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type OpaqueKeyResponse struct {
	OpaqueKey string `json:"opaque_key"`
	msg       string
}

func (r OpaqueKeyResponse) Message() string { return r.msg }

type VerifyCodeRequest struct {
	OpaqueKey string `json:"opaque_key"`
	Code      string `json:"code"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func newTokenResponse(p *entity.TokenPair) TokenResponse {
	return TokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresAt: p.ExpiresAt}
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type LoginResponse struct {
	AccessToken        string     `json:"access_token,omitempty"`
	RefreshToken       string     `json:"refresh_token,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	OpaqueKey          string     `json:"opaque_key,omitempty"`
	ActivationRequired bool       `json:"activation_required,omitempty"`
}

func (r LoginResponse) Message() string {
	if r.ActivationRequired {
		return "Account is not activated. A verification code has been sent."
	}
	return "Login successful"
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type PasswordForgotRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type PasswordForgotVerifyResponse struct {
	ConfirmToken string `json:"confirm_token"`
}

type PasswordResetRequest struct {
	ConfirmToken    string `json:"confirm_token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
	msg     string
}

func (r SuccessResponse) Message() string { return r.msg }

type PasswordChangeRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type OTPResendRequest struct {
	OpaqueKey string `json:"opaque_key"`
	Purpose   string `json:"purpose"`
}

type ProfileResponse struct {
	ID          int64     `json:"id,string"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	MiddleName  string    `json:"middle_name,omitempty"`
	BirthDate   string    `json:"birth_date"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserRoleRequest struct {
	Role string `json:"role"`
}

type OTPSweepResponse struct {
	Invalidated int64 `json:"invalidated"`
	Pruned      int64 `json:"pruned"`
}
