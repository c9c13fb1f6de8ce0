package notification

import (
	"cmp"
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/konkurs/internal/notification/entity"
	"github.com/shandysiswandi/konkurs/internal/notification/inbound"
	"github.com/shandysiswandi/konkurs/internal/notification/outbound/db"
	"github.com/shandysiswandi/konkurs/internal/notification/outbound/email"
	"github.com/shandysiswandi/konkurs/internal/notification/outbound/logsink"
	"github.com/shandysiswandi/konkurs/internal/notification/outbound/sms"
	"github.com/shandysiswandi/konkurs/internal/notification/outbound/telegram"
	"github.com/shandysiswandi/konkurs/internal/notification/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goroutine"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/mail"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/pkg/tokensource"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
)

type Dependency struct {
	DBConn     *pgxpool.Pool              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	// Mail is nil when SMTP is not configured.
	Mail mail.Mail
}

// New wires the notification module and returns its usecase, which is the
// OTP dispatcher the identity module sends codes through.
func New(ctx context.Context, dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	httpClient := &http.Client{
		Timeout: cmp.Or(dep.Config.GetSecond("modules.notification.http_timeout_seconds"), 10*time.Second),
	}

	senders := map[entity.Channel]usecase.Sender{
		entity.ChannelLog: logsink.New(),
	}

	if token := dep.Config.GetString("modules.notification.telegram.bot_token"); token != "" {
		senders[entity.ChannelTelegram] = telegram.New(telegram.Config{
			BaseURL:    dep.Config.GetString("modules.notification.telegram.base_url"),
			BotToken:   token,
			ChatID:     dep.Config.GetString("modules.notification.telegram.chat_id"),
			MaxRetries: uint64(max(dep.Config.GetInt("modules.notification.telegram.max_retries"), 0)),
		}, httpClient, dep.Instrument)
	}

	if base := dep.Config.GetString("modules.notification.sms.base_url"); base != "" {
		tokens := tokensource.New(
			tokensource.NewClientCredentials(
				dep.Config.GetString("modules.notification.sms.token_url"),
				dep.Config.GetString("modules.notification.sms.client_id"),
				dep.Config.GetString("modules.notification.sms.client_secret"),
			),
			dep.Clock,
			cmp.Or(dep.Config.GetSecond("modules.notification.sms.token_leeway_seconds"), time.Minute),
		)
		senders[entity.ChannelSMS] = sms.New(sms.Config{
			BaseURL:    base,
			From:       dep.Config.GetString("modules.notification.sms.from"),
			MaxRetries: uint64(max(dep.Config.GetInt("modules.notification.sms.max_retries"), 0)),
		}, tokens, httpClient, dep.Instrument)
	}

	ucDep := usecase.Dependency{
		RepoDB:     db.NewDB(dep.DBConn, dep.Instrument),
		Senders:    senders,
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
	}
	if dep.Mail != nil {
		ucDep.Email = email.New(dep.Mail, dep.Config.GetString("mail.from"), dep.Instrument)
	}
	uc := usecase.New(ucDep)

	inbound.RegisterMQConsumer(ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return uc, nil
}
