package usecase

import (
	"testing"
	"time"

	"github.com/shandysiswandi/konkurs/internal/identity/entity"
	"github.com/stretchr/testify/assert"
)

func records(now time.Time, ages ...time.Duration) []entity.OTPRecord {
	out := make([]entity.OTPRecord, 0, len(ages))
	for i, age := range ages {
		out = append(out, entity.OTPRecord{ID: int64(i + 1), CreatedAt: now.Add(-age), State: entity.OTPActive{}})
	}
	return out
}

func TestLimiter_CheckCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		active []entity.OTPRecord
		want   entity.Decision
	}{
		{name: "none", active: nil, want: entity.DecisionAllow},
		{name: "two", active: records(now, time.Minute, 2*time.Minute), want: entity.DecisionAllow},
		{name: "three within window", active: records(now, time.Minute, time.Hour, 11*time.Hour), want: entity.DecisionRateLimited},
		{name: "three, oldest exactly at window", active: records(now, time.Minute, time.Hour, 12*time.Hour), want: entity.DecisionRateLimited},
		{name: "three, oldest past window", active: records(now, time.Minute, time.Hour, 12*time.Hour+time.Second), want: entity.DecisionMustRotate},
		{name: "oldest is not last", active: records(now, 13*time.Hour, time.Minute, time.Hour), want: entity.DecisionMustRotate},
		{name: "more than cap", active: records(now, time.Minute, 2*time.Minute, 3*time.Minute, 4*time.Minute), want: entity.DecisionRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultLimiter.CheckCap(tt.active, now))
		})
	}
}

func TestLimiter_CheckCooldown(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, entity.DecisionTooSoon, DefaultLimiter.CheckCooldown(entity.OTPRecord{CreatedAt: now}, now))
	assert.Equal(t, entity.DecisionTooSoon, DefaultLimiter.CheckCooldown(entity.OTPRecord{CreatedAt: now.Add(-59 * time.Second)}, now))
	assert.Equal(t, entity.DecisionAllow, DefaultLimiter.CheckCooldown(entity.OTPRecord{CreatedAt: now.Add(-time.Minute)}, now))
}

func TestLimiter_CheckAndReserve(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fresh := entity.OTPRecord{CreatedAt: now.Add(-10 * time.Second)}
	old := entity.OTPRecord{CreatedAt: now.Add(-2 * time.Minute)}

	assert.Equal(t, entity.DecisionAllow, DefaultLimiter.CheckAndReserve(nil, nil, now))
	assert.Equal(t, entity.DecisionTooSoon, DefaultLimiter.CheckAndReserve([]entity.OTPRecord{fresh}, &fresh, now))
	assert.Equal(t, entity.DecisionAllow, DefaultLimiter.CheckAndReserve([]entity.OTPRecord{old}, &old, now))

	full := records(now, 10*time.Second, time.Hour, 2*time.Hour)
	assert.Equal(t, entity.DecisionRateLimited, DefaultLimiter.CheckAndReserve(full, &full[0], now), "cap is checked before cooldown")

	stale := records(now, 10*time.Second, time.Hour, 13*time.Hour)
	assert.Equal(t, entity.DecisionTooSoon, DefaultLimiter.CheckAndReserve(stale, &stale[0], now))

	stale = records(now, 2*time.Minute, time.Hour, 13*time.Hour)
	assert.Equal(t, entity.DecisionMustRotate, DefaultLimiter.CheckAndReserve(stale, &stale[0], now))
}
