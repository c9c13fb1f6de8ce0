package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/konkurs/internal/identity/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishUserActivated(ctx context.Context, msg usecase.UserActivatedEvent) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, "PublishUserActivated")
	defer span.End()

	return m.publish(ctx, span, event.UserActivatedDestination, msg.UserID, event.UserActivatedMessage{
		UserID:      msg.UserID,
		PhoneNumber: msg.PhoneNumber,
		Email:       msg.Email,
		FullName:    msg.FullName,
		ActivatedAt: msg.ActivatedAt,
	})
}

func (m *Messaging) PublishPasswordChanged(ctx context.Context, msg usecase.PasswordChangedEvent) error {
	ctx, span := m.ins.Tracer("identity.outbound.mq").Start(ctx, "PublishPasswordChanged")
	defer span.End()

	return m.publish(ctx, span, event.PasswordChangedDestination, msg.UserID, event.PasswordChangedMessage{
		UserID:      msg.UserID,
		PhoneNumber: msg.PhoneNumber,
		Email:       msg.Email,
		Reason:      msg.Reason,
		ChangedAt:   msg.ChangedAt,
	})
}

func (m *Messaging) publish(ctx context.Context, span trace.Span, topic string, userID int64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := m.client.Publish(ctx, topic, messaging.OutgoingMessage{
		Key:     []byte(strconv.FormatInt(userID, 10)),
		Body:    body,
		Headers: map[string]string{event.HeaderCorrelationID: instrument.GetCorrelationID(ctx)},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
