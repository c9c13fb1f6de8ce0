package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/konkurs/internal/notification/entity"
	"github.com/shandysiswandi/konkurs/internal/pkg/clock"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	logs      map[int64]entity.DeliveryLog
	responses map[int64]valueobject.JSONMap
	createErr error
}

func (r *fakeRepo) CreateDeliveryLog(_ context.Context, dl entity.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.logs[dl.ID] = dl
	return nil
}

func (r *fakeRepo) UpdateDeliveryLogStatus(_ context.Context, id int64, status entity.DeliveryStatus, resp valueobject.JSONMap, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.logs[id]
	if !ok {
		return errors.New("not found")
	}
	dl.Status = status
	dl.UpdatedAt = at
	r.logs[id] = dl
	r.responses[id] = resp
	return nil
}

type sent struct {
	destination string
	message     string
	deadline    bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Send(ctx context.Context, destination, message string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := ctx.Deadline()
	f.sent = append(f.sent, sent{destination: destination, message: message, deadline: ok})
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"ok": true}, nil
}

type fakeEmail struct {
	subjects []string
	to       []string
	err      error
}

func (f *fakeEmail) Send(_ context.Context, destination, subject, _ string) (map[string]any, error) {
	f.to = append(f.to, destination)
	f.subjects = append(f.subjects, subject)
	return map[string]any{}, f.err
}

type seqID struct{ n atomic.Int64 }

func (s *seqID) Generate() int64 { return s.n.Add(1) }

type env struct {
	uc       *Usecase
	repo     *fakeRepo
	log      *fakeSender
	telegram *fakeSender
	email    *fakeEmail
}

func newEnv(t *testing.T, yaml string) *env {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	e := &env{
		repo:     &fakeRepo{logs: map[int64]entity.DeliveryLog{}, responses: map[int64]valueobject.JSONMap{}},
		log:      &fakeSender{},
		telegram: &fakeSender{},
		email:    &fakeEmail{},
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	e.uc = New(Dependency{
		RepoDB: e.repo,
		Senders: map[entity.Channel]Sender{
			entity.ChannelLog:      e.log,
			entity.ChannelTelegram: e.telegram,
		},
		Email:      e.email,
		Config:     cfg,
		UID:        &seqID{},
		Clock:      clock.Func(func() time.Time { return now }),
		Instrument: instrument.NewNoop(),
	})

	return e
}

func TestUsecase_Dispatch(t *testing.T) {
	t.Run("defaults to log channel", func(t *testing.T) {
		e := newEnv(t, "app:\n  name: test\n")

		require.NoError(t, e.uc.Dispatch(context.Background(), "+998901234567", "code 12345"))
		require.Len(t, e.log.sent, 1)
		assert.True(t, e.log.sent[0].deadline)
		assert.Empty(t, e.telegram.sent)

		dl := e.repo.logs[1]
		assert.Equal(t, entity.ChannelLog, dl.Channel)
		assert.Equal(t, entity.DeliveryStatusSent, dl.Status)
		assert.Equal(t, entity.PurposeOTP, dl.Purpose)
		assert.Equal(t, "+998*******67", dl.Destination)
	})

	t.Run("configured channel failure is recorded", func(t *testing.T) {
		e := newEnv(t, "modules:\n  notification:\n    otp_channel: telegram\n")
		e.telegram.err = errors.New("bot blocked")

		err := e.uc.Dispatch(context.Background(), "+998901234567", "code 12345")
		require.EqualError(t, err, "bot blocked")
		assert.Equal(t, entity.DeliveryStatusFailed, e.repo.logs[1].Status)
		assert.Equal(t, "bot blocked", e.repo.responses[1].GetString("error"))
	})

	t.Run("unconfigured channel", func(t *testing.T) {
		e := newEnv(t, "modules:\n  notification:\n    otp_channel: sms\n")

		err := e.uc.Dispatch(context.Background(), "+998901234567", "code 12345")
		require.ErrorIs(t, err, ErrChannelUnavailable)
		assert.Empty(t, e.repo.logs)
	})

	t.Run("delivery log failure does not block", func(t *testing.T) {
		e := newEnv(t, "app:\n  name: test\n")
		e.repo.createErr = errors.New("db down")

		require.NoError(t, e.uc.Dispatch(context.Background(), "+998901234567", "code 12345"))
		assert.Len(t, e.log.sent, 1)
	})
}

func TestUsecase_ConsumeUserActivated(t *testing.T) {
	e := newEnv(t, "app:\n  name: test\n")

	err := e.uc.ConsumeUserActivated(context.Background(), UserActivatedInput{
		UserID:      7,
		PhoneNumber: "+998901234567",
		Email:       "aziza@example.com",
		FullName:    "Aziza Karimova",
	})
	require.NoError(t, err)

	require.Len(t, e.log.sent, 1)
	assert.Contains(t, e.log.sent[0].message, "welcome, Aziza Karimova")
	assert.Equal(t, []string{"aziza@example.com"}, e.email.to)
	assert.Equal(t, []string{"Welcome to Konkurs"}, e.email.subjects)

	require.Len(t, e.repo.logs, 2)
	assert.Equal(t, entity.ChannelEmail, e.repo.logs[2].Channel)
	assert.Equal(t, entity.PurposeWelcome, e.repo.logs[2].Purpose)
	assert.Equal(t, "a****@example.com", e.repo.logs[2].Destination)
}

func TestUsecase_ConsumePasswordChanged(t *testing.T) {
	e := newEnv(t, "app:\n  name: test\n")
	e.email.err = errors.New("smtp down")

	err := e.uc.ConsumePasswordChanged(context.Background(), PasswordChangedInput{
		UserID:      7,
		PhoneNumber: "+998901234567",
		Email:       "aziza@example.com",
		Reason:      "reset",
		ChangedAt:   time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
	})
	require.EqualError(t, err, "smtp down")

	require.Len(t, e.log.sent, 1)
	assert.Equal(t, "Konkurs: your password was reset on 2026-03-10 09:30 UTC. If this was not you, reset it now.", e.log.sent[0].message)
	assert.Equal(t, entity.DeliveryStatusSent, e.repo.logs[1].Status)
	assert.Equal(t, entity.DeliveryStatusFailed, e.repo.logs[2].Status)
}

func TestUsecase_ConsumeWithoutEmail(t *testing.T) {
	e := newEnv(t, "app:\n  name: test\n")

	err := e.uc.ConsumePasswordChanged(context.Background(), PasswordChangedInput{
		UserID:      7,
		PhoneNumber: "+998901234567",
		Reason:      "change",
	})
	require.NoError(t, err)
	assert.Contains(t, e.log.sent[0].message, "password was changed")
	assert.Empty(t, e.email.to)
}
