package usecase

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/hash"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/lock"
	"github.com/shandysiswandi/konkurs/internal/pkg/otp"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type UserActivatedEvent struct {
	UserID      int64
	PhoneNumber string
	Email       string
	FullName    string
	ActivatedAt time.Time
}

type PasswordChangedEvent struct {
	UserID      int64
	PhoneNumber string
	Email       string
	Reason      string
	ChangedAt   time.Time
}

type repoMessaging interface {
	PublishUserActivated(ctx context.Context, msg UserActivatedEvent) error
	PublishPasswordChanged(ctx context.Context, msg PasswordChangedEvent) error
}

type repoDB interface {
	GetUserByPhone(ctx context.Context, phone string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	CreateUser(ctx context.Context, user entity.User) error
	UpdateUserRole(ctx context.Context, id int64, role entity.Role, at time.Time) error
	ChangePassword(ctx context.Context, userID int64, hash string, at time.Time) error

	// CreateOTP serializes issuance per (subject, purpose). decide sees the
	// active records newest first; rec is inserted on allow and must rotate.
	CreateOTP(ctx context.Context, rec entity.OTPRecord, decide func(active []entity.OTPRecord) entity.Decision) (entity.Decision, error)
	GetActiveOTPByKey(ctx context.Context, keyHash string, purpose entity.OTPPurpose) (*entity.OTPRecord, error)
	GetActiveOTPByConfirmToken(ctx context.Context, tokenHash string) (*entity.OTPRecord, error)
	ReserveOTPAttempt(ctx context.Context, id int64, maxAttempts int) (int, error)
	InvalidateOTP(ctx context.Context, id int64, at time.Time) error
	ActivateUserByOTP(ctx context.Context, rec entity.OTPRecord, at time.Time) error
	ExchangeOTPForConfirm(ctx context.Context, rec, confirm entity.OTPRecord, at time.Time) error
	ResetPasswordByConfirm(ctx context.Context, rec entity.OTPRecord, hash string, at time.Time) error
	SweepOTPs(ctx context.Context, createdBefore, at time.Time) (int64, error)
	PruneBlacklist(ctx context.Context, now time.Time) (int64, error)

	CreateRefreshToken(ctx context.Context, rt entity.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*entity.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID int64, next entity.RefreshToken, at time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID int64, at time.Time) error
	RevokeSession(ctx context.Context, refreshID int64, entry entity.BlacklistEntry) error
}

// dispatcher delivers a message to a phone number. A nil error means the
// channel accepted it.
type dispatcher interface {
	Dispatch(ctx context.Context, destination, message string) error
}

type revoker interface {
	Digest(token string) string
	IsRevoked(ctx context.Context, token string) (bool, error)
	Remember(ctx context.Context, digest string, expiresAt time.Time)
}

type digester interface {
	Digest(plaintext string) string
	Verify(hashed, plaintext string) bool
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	dispatcher    dispatcher
	revoker       revoker
	locker        lock.Locker
	validator     validator.Validator
	cfg           config.Config
	hmac          digester
	bcrypt        hash.Hash
	uid           uid.NumberID
	opaque        uid.StringID
	code          otp.Generator
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation

	otpIssued   metric.Int64Counter
	otpVerified metric.Int64Counter
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Dispatcher    dispatcher
	Revoker       revoker
	Locker        lock.Locker
	Validator     validator.Validator
	Config        config.Config
	HMAC          digester
	Bcrypt        hash.Hash
	UID           uid.NumberID
	Opaque        uid.StringID
	Code          otp.Generator
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		dispatcher:    dep.Dispatcher,
		revoker:       dep.Revoker,
		locker:        dep.Locker,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		bcrypt:        dep.Bcrypt,
		uid:           dep.UID,
		opaque:        dep.Opaque,
		code:          dep.Code,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		otpIssued:     noop.Int64Counter{},
		otpVerified:   noop.Int64Counter{},
	}

	meter := dep.Instrument.Meter("identity.usecase")
	if c, err := meter.Int64Counter("identity.otp.issued", metric.WithDescription("OTP codes dispatched")); err == nil {
		uc.otpIssued = c
	} else {
		slog.Warn("failed to create otp issued counter", "error", err)
	}
	if c, err := meter.Int64Counter("identity.otp.verify", metric.WithDescription("OTP verifications by outcome")); err == nil {
		uc.otpVerified = c
	} else {
		slog.Warn("failed to create otp verify counter", "error", err)
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.usecase").Start(ctx, name)
}

// otpPolicy is re-read on every call so config reloads apply at once.
type otpPolicy struct {
	limiter         Limiter
	maxAttempts     int
	codeTTL         time.Duration
	confirmTTL      time.Duration
	dispatchTimeout time.Duration
	lockTTL         time.Duration
}

func (s *Usecase) policy() otpPolicy {
	return otpPolicy{
		limiter: Limiter{
			MaxActive: cmp.Or(s.cfg.GetInt("modules.identity.otp.max_active"), DefaultLimiter.MaxActive),
			Window:    cmp.Or(s.cfg.GetHour("modules.identity.otp.window_hours"), DefaultLimiter.Window),
			Cooldown:  cmp.Or(s.cfg.GetSecond("modules.identity.otp.cooldown_seconds"), DefaultLimiter.Cooldown),
		},
		maxAttempts:     cmp.Or(s.cfg.GetInt("modules.identity.otp.max_attempts"), 3),
		codeTTL:         cmp.Or(s.cfg.GetMinute("modules.identity.otp.code_ttl_minutes"), 3*time.Minute),
		confirmTTL:      cmp.Or(s.cfg.GetMinute("modules.identity.otp.confirm_ttl_minutes"), 30*time.Minute),
		dispatchTimeout: cmp.Or(s.cfg.GetSecond("modules.identity.otp.dispatch_timeout_seconds"), 10*time.Second),
		lockTTL:         cmp.Or(s.cfg.GetSecond("modules.identity.otp.lock_ttl_seconds"), 5*time.Second),
	}
}

func (s *Usecase) refreshTTL() time.Duration {
	return cmp.Or(s.cfg.GetDay("modules.identity.refresh_token_ttl_days"), 30*24*time.Hour)
}

const (
	kindWrongCode        goerror.Kind = "wrong_code"
	kindExpired          goerror.Kind = "expired"
	kindExhausted        goerror.Kind = "exhausted"
	kindNotFound         goerror.Kind = "not_found"
	kindRateLimited      goerror.Kind = "rate_limited"
	kindTooSoon          goerror.Kind = "too_soon"
	kindPasswordMismatch goerror.Kind = "password_mismatch"
	kindDispatchFailed   goerror.Kind = "dispatch_failed"
	kindInvalidToken     goerror.Kind = "invalid_token"
	kindWrongPassword    goerror.Kind = "wrong_password"
)

var (
	errRateLimited      = goerror.NewBusinessKind("Too many codes requested, try again later", goerror.CodeTooManyRequest, kindRateLimited)
	errTooSoon          = goerror.NewBusinessKind("Wait a minute before requesting a new code", goerror.CodeBadRequest, kindTooSoon)
	errDispatchFailed   = goerror.NewBusinessKind("Failed to send the verification code", goerror.CodeBadGateway, kindDispatchFailed)
	errPasswordMismatch = goerror.NewBusinessKind("Passwords do not match", goerror.CodeBadRequest, kindPasswordMismatch)
	errInvalidToken     = goerror.NewBusinessKind("Invalid token", goerror.CodeBadRequest, kindInvalidToken)
	errUserNotFound     = goerror.NewBusinessKind("User not found", goerror.CodeNotFound, kindNotFound)
	errAuthRequired     = goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
)

// outcomeError maps a failed verification to its client error.
func outcomeError(o entity.VerifyOutcome) error {
	switch o {
	case entity.VerifyNotFound:
		return goerror.NewBusinessKind("Verification code not found, request a new one", goerror.CodeBadRequest, kindNotFound)
	case entity.VerifyExhausted:
		return goerror.NewBusinessKind("Too many wrong attempts, request a new code", goerror.CodeBadRequest, kindExhausted)
	case entity.VerifyWrongCode:
		return goerror.NewBusinessKind("Verification code is wrong", goerror.CodeBadRequest, kindWrongCode)
	case entity.VerifyExpired:
		return goerror.NewBusinessKind("Verification code has expired, request a new one", goerror.CodeBadRequest, kindExpired)
	default:
		return nil
	}
}
