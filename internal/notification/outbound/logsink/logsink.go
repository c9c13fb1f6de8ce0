// Package logsink is the development channel: nothing leaves the process,
// the message is written to the log instead.
package logsink

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/konkurs/internal/notification/entity"
)

type Sink struct{}

func New() *Sink { return &Sink{} }

func (*Sink) Send(ctx context.Context, destination, message string) (map[string]any, error) {
	masked := entity.MaskDestination(destination)
	slog.InfoContext(ctx, "notification delivered to log sink", "destination", masked, "message", message)

	return map[string]any{"sink": "log", "destination": masked}, nil
}
