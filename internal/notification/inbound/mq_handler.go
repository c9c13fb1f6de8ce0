package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/notification/usecase"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/messaging"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/shared/event"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if id := msg.Header(event.HeaderCorrelationID); id != "" {
		return instrument.SetCorrelationID(ctx, id)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// A body that does not decode is dropped: redelivery would not fix it.
func (h *MQHandler) UserActivatedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "UserActivatedNotification")
	defer span.End()

	slog.InfoContext(ctx, "consume: user activated notification", "msg_id", msg.ID, "attempt", msg.Attempt)

	var payload event.UserActivatedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of user activated notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeUserActivated(ctx, usecase.UserActivatedInput{
		UserID:      payload.UserID,
		PhoneNumber: payload.PhoneNumber,
		Email:       payload.Email,
		FullName:    payload.FullName,
		ActivatedAt: payload.ActivatedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume user activated", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) PasswordChangedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "PasswordChangedNotification")
	defer span.End()

	slog.InfoContext(ctx, "consume: password changed notification", "msg_id", msg.ID, "attempt", msg.Attempt)

	var payload event.PasswordChangedMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of password changed notification", "msg_body", string(msg.Body), "error", err)
		return nil
	}

	if err := h.uc.ConsumePasswordChanged(ctx, usecase.PasswordChangedInput{
		UserID:      payload.UserID,
		PhoneNumber: payload.PhoneNumber,
		Email:       payload.Email,
		Reason:      payload.Reason,
		ChangedAt:   payload.ChangedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume password changed", "user_id", payload.UserID, "error", err)
		return err
	}

	return nil
}
