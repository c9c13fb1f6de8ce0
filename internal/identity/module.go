package identity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/konkurs/internal/identity/inbound"
	"github.com/shandysiswandi/konkurs/internal/identity/outbound/db"
	"github.com/shandysiswandi/konkurs/internal/identity/outbound/mq"
	"github.com/shandysiswandi/konkurs/internal/identity/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goroutine"
	"github.com/shandysiswandi/konkurs/internal/pkg/hash"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/lock"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/pkg/otp"
	"github.com/shandysiswandi/konkurs/internal/pkg/revocation"
	"github.com/shandysiswandi/konkurs/internal/pkg/router"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
)

// Dispatcher delivers an OTP message to a phone number. The notification
// module provides it.
type Dispatcher interface {
	Dispatch(ctx context.Context, destination, message string) error
}

type Dependency struct {
	DBConn     *pgxpool.Pool              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Dispatcher Dispatcher                 `validate:"required"`
	Revocation *revocation.Checker        `validate:"required"`
	Locker     lock.Locker                `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Opaque     uid.StringID               `validate:"required"`
	HMAC       *hash.HMACSHA256           `validate:"required"`
	Bcrypt     hash.Hash                  `validate:"required"`
	Code       otp.Generator              `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
}

// New wires the identity module and starts its sweep worker. ctx bounds the
// worker's lifetime.
func New(ctx context.Context, dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        db.NewDB(dep.DBConn, dep.Instrument),
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Dispatcher:    dep.Dispatcher,
		Revoker:       dep.Revocation,
		Locker:        dep.Locker,
		Validator:     dep.Validator,
		Config:        dep.Config,
		HMAC:          dep.HMAC,
		Bcrypt:        dep.Bcrypt,
		UID:           dep.UID,
		Opaque:        dep.Opaque,
		Code:          dep.Code,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	inbound.RegisterSweepWorker(ctx, dep.Config, dep.Goroutine, uc)

	return nil
}
