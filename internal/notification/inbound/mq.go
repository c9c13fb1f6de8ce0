package inbound

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/konkurs/internal/notification/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goroutine"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/shared/event"
)

type uc interface {
	ConsumeUserActivated(ctx context.Context, in usecase.UserActivatedInput) error
	ConsumePasswordChanged(ctx context.Context, in usecase.PasswordChangedInput) error
}

// RegisterMQConsumer starts the consumers listed in
// modules.notification.consumer_names. Each runs until ctx is done.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	consumer messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enabled := cfg.GetArray("modules.notification.consumer_names")
	concurrency := max(cfg.GetInt("modules.notification.consumer_concurrency"), 1)

	consumers := []struct {
		name    string // also the consumer group
		topic   string // destination the publisher sends to
		handler messaging.Handler
	}{
		{
			name:    event.UserActivatedConsumerNotification,
			topic:   event.UserActivatedDestination,
			handler: h.UserActivatedNotification,
		},
		{
			name:    event.PasswordChangedConsumerNotification,
			topic:   event.PasswordChangedDestination,
			handler: h.PasswordChangedNotification,
		},
	}

	for _, c := range consumers {
		if !slices.Contains(enabled, c.name) {
			continue
		}

		routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "running consumer", "consumer", c.name, "topic", c.topic)
			err := consumer.Consume(pCtx, c.topic, c.handler,
				messaging.WithGroup(c.name),
				messaging.WithConcurrency(concurrency),
			)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "consumer stopped", "consumer", c.name, "error", err)
				return err
			}
			return nil
		})
	}
}
