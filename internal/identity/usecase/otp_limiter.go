package usecase

import (
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/konkurs/internal/identity/entity"
)

// Limiter decides whether another code may be issued for a subject. Its
// methods are pure; callers supply the active records and the time.
type Limiter struct {
	// MaxActive is how many active records a subject may hold.
	MaxActive int
	// Window is the age after which a full set of active records is
	// rotated instead of rejected.
	Window time.Duration
	// Cooldown separates a resend from the record it replaces.
	Cooldown time.Duration
}

var DefaultLimiter = Limiter{
	MaxActive: 3,
	Window:    12 * time.Hour,
	Cooldown:  time.Minute,
}

// CheckCap looks only at how many records are active and how old the
// oldest one is.
func (l Limiter) CheckCap(active []entity.OTPRecord, now time.Time) entity.Decision {
	if len(active) < l.MaxActive {
		return entity.DecisionAllow
	}

	oldest := lo.MinBy(active, func(a, b entity.OTPRecord) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if now.Sub(oldest.CreatedAt) > l.Window {
		return entity.DecisionMustRotate
	}
	return entity.DecisionRateLimited
}

func (l Limiter) CheckCooldown(existing entity.OTPRecord, now time.Time) entity.Decision {
	if now.Sub(existing.CreatedAt) < l.Cooldown {
		return entity.DecisionTooSoon
	}
	return entity.DecisionAllow
}

// CheckAndReserve applies the cap first and then the cooldown against
// existing, the record being resent. A nil existing skips the cooldown.
func (l Limiter) CheckAndReserve(active []entity.OTPRecord, existing *entity.OTPRecord, now time.Time) entity.Decision {
	d := l.CheckCap(active, now)
	if d == entity.DecisionRateLimited || existing == nil {
		return d
	}
	if l.CheckCooldown(*existing, now) == entity.DecisionTooSoon {
		return entity.DecisionTooSoon
	}
	return d
}
