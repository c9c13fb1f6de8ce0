package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shandysiswandi/konkurs/internal/notification/entity"
)

type UserActivatedInput struct {
	UserID      int64
	PhoneNumber string
	Email       string
	FullName    string
	ActivatedAt time.Time
}

type PasswordChangedInput struct {
	UserID      int64
	PhoneNumber string
	Email       string
	Reason      string
	ChangedAt   time.Time
}

// ConsumeUserActivated greets a freshly activated user on the primary
// channel and, when they gave one, by email.
func (s *Usecase) ConsumeUserActivated(ctx context.Context, in UserActivatedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeUserActivated")
	defer span.End()

	name := in.FullName
	if name == "" {
		name = "participant"
	}
	text := fmt.Sprintf("Konkurs: welcome, %s! Your account is active.", name)

	return s.notify(ctx, in.PhoneNumber, in.Email, entity.PurposeWelcome, "Welcome to Konkurs", text)
}

// ConsumePasswordChanged warns the owner that their password was replaced.
func (s *Usecase) ConsumePasswordChanged(ctx context.Context, in PasswordChangedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumePasswordChanged")
	defer span.End()

	verb := "changed"
	if in.Reason == "reset" {
		verb = "reset"
	}
	text := fmt.Sprintf("Konkurs: your password was %s on %s UTC. If this was not you, reset it now.",
		verb, in.ChangedAt.UTC().Format("2006-01-02 15:04"))

	return s.notify(ctx, in.PhoneNumber, in.Email, entity.PurposeSecurity, "Your Konkurs password was "+verb, text)
}

func (s *Usecase) notify(ctx context.Context, phone, email string, purpose entity.Purpose, subject, text string) error {
	var errs []error

	if phone != "" {
		if err := s.sendText(ctx, phone, text, purpose); err != nil {
			errs = append(errs, err)
		}
	}

	if email != "" && s.email != nil {
		err := s.deliver(ctx, entity.ChannelEmail, email, purpose, func(ctx context.Context) (map[string]any, error) {
			return s.email.Send(ctx, email, subject, text)
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
