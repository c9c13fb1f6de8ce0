package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goroutine"
	"github.com/shandysiswandi/konkurs/internal/pkg/hash"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/lock"
	"github.com/shandysiswandi/konkurs/internal/pkg/mail"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/pkg/otp"
	"github.com/shandysiswandi/konkurs/internal/pkg/revocation"
	"github.com/shandysiswandi/konkurs/internal/pkg/router"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      *hash.HMACSHA256
	bcrypt    hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	opaque    uid.StringID
	code      otp.Generator
	jwt       jwt.JWT

	// resources
	dbConn     *pgxpool.Pool
	cacheConn  *redis.Client
	locker     lock.Locker
	revocation *revocation.Checker
	mail       mail.Mail
	messaging  messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initRevocation()
	app.initMail()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
