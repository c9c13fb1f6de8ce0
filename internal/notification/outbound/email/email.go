package email

import (
	"context"

	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/mail"
	"go.opentelemetry.io/otel/codes"
)

// Email sends plain notices to an address. Only event notices use it, OTP
// codes go to phone numbers.
type Email struct {
	client mail.Mail
	from   string
	ins    instrument.Instrumentation
}

func New(client mail.Mail, from string, ins instrument.Instrumentation) *Email {
	return &Email{client: client, from: from, ins: ins}
}

func (e *Email) Send(ctx context.Context, destination, subject, body string) (map[string]any, error) {
	ctx, span := e.ins.Tracer("notification.outbound.email").Start(ctx, "Send")
	defer span.End()

	err := e.client.Send(ctx, mail.Message{
		From:     e.from,
		To:       []string{destination},
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return map[string]any{"error": err.Error()}, err
	}

	return map[string]any{"subject": subject}, nil
}
