package entity

import "strings"

type OTPPurpose int16

const (
	// OTPPurposeUnknown is the zero value and never stored.
	OTPPurposeUnknown OTPPurpose = 0

	// OTPPurposeRegister activates a freshly registered account.
	OTPPurposeRegister OTPPurpose = 1

	// OTPPurposePasswordResetRequest proves phone ownership before a reset.
	OTPPurposePasswordResetRequest OTPPurpose = 2

	// OTPPurposePasswordResetConfirm backs the confirm token that authorizes
	// setting a new password.
	OTPPurposePasswordResetConfirm OTPPurpose = 3
)

func (p OTPPurpose) String() string {
	switch p {
	case OTPPurposeRegister:
		return "register"
	case OTPPurposePasswordResetRequest:
		return "password_reset_request"
	case OTPPurposePasswordResetConfirm:
		return "password_reset_confirm"
	default:
		return "unknown"
	}
}

// ParseResendPurpose maps the public resend names to a purpose.
func ParseResendPurpose(s string) OTPPurpose {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "register":
		return OTPPurposeRegister
	case "forgot":
		return OTPPurposePasswordResetRequest
	default:
		return OTPPurposeUnknown
	}
}

type Role int16

const (
	RoleNone      Role = 0
	RoleCandidate Role = 1
	RoleJury      Role = 2
	RoleAdmin     Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleCandidate:
		return "candidate"
	case RoleJury:
		return "jury"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParseRole returns false for names outside the known set.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return RoleNone, true
	case "candidate":
		return RoleCandidate, true
	case "jury":
		return RoleJury, true
	case "admin":
		return RoleAdmin, true
	default:
		return RoleNone, false
	}
}

// Decision is the answer of the resend limiter.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionRateLimited
	DecisionMustRotate
	DecisionTooSoon
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionRateLimited:
		return "rate_limited"
	case DecisionMustRotate:
		return "must_rotate"
	case DecisionTooSoon:
		return "too_soon"
	default:
		return "unknown"
	}
}

type VerifyOutcome int

const (
	VerifySuccess VerifyOutcome = iota
	VerifyNotFound
	VerifyExhausted
	VerifyWrongCode
	VerifyExpired
)

func (o VerifyOutcome) String() string {
	switch o {
	case VerifySuccess:
		return "success"
	case VerifyNotFound:
		return "not_found"
	case VerifyExhausted:
		return "exhausted"
	case VerifyWrongCode:
		return "wrong_code"
	case VerifyExpired:
		return "expired"
	default:
		return "unknown"
	}
}
