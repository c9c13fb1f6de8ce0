package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/konkurs/internal/identity"
	"github.com/shandysiswandi/konkurs/internal/notification"
)

// initModules starts notification first: identity sends codes through it.
func (a *App) initModules() {
	dispatcher, err := notification.New(a.ctx, notification.Dependency{
		DBConn:     a.dbConn,
		Goroutine:  a.goroutine,
		Messaging:  a.messaging,
		Config:     a.config,
		Instrument: a.ins,
		UUID:       a.uuid,
		UID:        a.uid,
		Clock:      a.clock,
		Validator:  a.validator,
		Mail:       a.mail,
	})
	if err != nil {
		slog.Error("failed to init module notification", "error", err)
		os.Exit(1)
	}

	if err := identity.New(a.ctx, identity.Dependency{
		DBConn:     a.dbConn,
		Goroutine:  a.goroutine,
		Router:     a.router,
		Messaging:  a.messaging,
		Dispatcher: dispatcher,
		Revocation: a.revocation,
		Locker:     a.locker,
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		Opaque:     a.opaque,
		HMAC:       a.hmac,
		Bcrypt:     a.bcrypt,
		Code:       a.code,
		Clock:      a.clock,
		Validator:  a.validator,
		JWT:        a.jwt,
	}); err != nil {
		slog.Error("failed to init module identity", "error", err)
		os.Exit(1)
	}
}
