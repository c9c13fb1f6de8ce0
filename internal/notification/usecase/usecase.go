package usecase

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/konkurs/internal/notification/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var ErrChannelUnavailable = errors.New("notification channel is not configured")

type repoDB interface {
	CreateDeliveryLog(ctx context.Context, dl entity.DeliveryLog) error
	UpdateDeliveryLogStatus(ctx context.Context, id int64, status entity.DeliveryStatus, resp valueobject.JSONMap, at time.Time) error
}

// Sender delivers a text message to a phone number and reports what the
// provider answered.
type Sender interface {
	Send(ctx context.Context, destination, message string) (map[string]any, error)
}

type emailSender interface {
	Send(ctx context.Context, destination, subject, body string) (map[string]any, error)
}

type Usecase struct {
	repoDB  repoDB
	senders map[entity.Channel]Sender
	email   emailSender
	cfg     config.Config
	uid     uid.NumberID
	clock   clock.Clocker
	ins     instrument.Instrumentation

	delivered metric.Int64Counter
}

type Dependency struct {
	RepoDB  repoDB
	Senders map[entity.Channel]Sender
	// Email is optional; without it event notices skip the email copy.
	Email      emailSender
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	uc := &Usecase{
		repoDB:    dep.RepoDB,
		senders:   dep.Senders,
		email:     dep.Email,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		ins:       dep.Instrument,
		delivered: noop.Int64Counter{},
	}

	c, err := dep.Instrument.Meter("notification.usecase").Int64Counter("notification.delivery", metric.WithDescription("Notification deliveries by channel and status"))
	if err != nil {
		slog.Warn("failed to create delivery counter", "error", err)
	} else {
		uc.delivered = c
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

// channel is re-read on every call so a config reload switches providers.
func (s *Usecase) channel() entity.Channel {
	ch := entity.ChannelFromString(s.cfg.GetString("modules.notification.otp_channel"))
	if ch == entity.ChannelUnknown || ch == entity.ChannelEmail {
		return entity.ChannelLog
	}
	return ch
}

func (s *Usecase) timeout() time.Duration {
	return cmp.Or(s.cfg.GetSecond("modules.notification.dispatch_timeout_seconds"), 10*time.Second)
}

// deliver wraps one provider call with a delivery log. Logging failures are
// reported but never fail the delivery.
func (s *Usecase) deliver(ctx context.Context, ch entity.Channel, destination string, purpose entity.Purpose, send func(ctx context.Context) (map[string]any, error)) error {
	ctx, span := s.startSpan(ctx, "deliver")
	defer span.End()
	span.SetAttributes(attribute.String("channel", ch.String()), attribute.String("purpose", string(purpose)))

	dl := entity.DeliveryLog{
		ID:          s.uid.Generate(),
		Channel:     ch,
		Destination: entity.MaskDestination(destination),
		Purpose:     purpose,
		Status:      entity.DeliveryStatusQueued,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repoDB.CreateDeliveryLog(ctx, dl); err != nil {
		slog.ErrorContext(ctx, "failed to repo create delivery log", "channel", ch.String(), "error", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout())
	out, err := send(sendCtx)
	cancel()

	resp := valueobject.JSONMap{}.With(out)
	status := entity.DeliveryStatusSent
	if err != nil {
		status = entity.DeliveryStatusFailed
		resp["error"] = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "notification delivery failed", "channel", ch.String(), "destination", dl.Destination, "error", err)
	}

	if uerr := s.repoDB.UpdateDeliveryLogStatus(context.WithoutCancel(ctx), dl.ID, status, resp, s.clock.Now()); uerr != nil {
		slog.ErrorContext(ctx, "failed to repo update delivery log", "delivery_id", dl.ID, "error", uerr)
	}

	s.delivered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", ch.String()),
		attribute.String("status", status.String()),
	))

	return err
}
