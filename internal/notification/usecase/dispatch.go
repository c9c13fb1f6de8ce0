package usecase

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/konkurs/internal/notification/entity"
)

// Dispatch sends an OTP message through the configured channel. A nil error
// means the provider accepted it.
func (s *Usecase) Dispatch(ctx context.Context, destination, message string) error {
	return s.sendText(ctx, destination, message, entity.PurposeOTP)
}

func (s *Usecase) sendText(ctx context.Context, destination, message string, purpose entity.Purpose) error {
	ch := s.channel()
	sender, ok := s.senders[ch]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, ch)
	}

	return s.deliver(ctx, ch, destination, purpose, func(ctx context.Context) (map[string]any, error) {
		return sender.Send(ctx, destination, message)
	})
}
