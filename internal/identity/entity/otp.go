package entity

import "time"

// OTPState is either OTPActive or OTPInvalidated.
type OTPState interface {
	isOTPState()
}

type OTPActive struct{}

// OTPInvalidated records when a record stopped being usable.
type OTPInvalidated struct {
	At time.Time
}

func (OTPActive) isOTPState() {}
func (OTPInvalidated) isOTPState() {}

// StateFromDeletedAt maps the nullable storage column to a state.
func StateFromDeletedAt(deletedAt *time.Time) OTPState {
	if deletedAt == nil {
		return OTPActive{}
	}
	return OTPInvalidated{At: *deletedAt}
}

// OTPRecord is a stored one-time code. Only digests of the code, the
// opaque key and the confirm token are kept.
type OTPRecord struct {
	ID               int64
	SubjectRef       string
	UserID           int64
	Purpose          OTPPurpose
	CodeHash         string
	OpaqueKeyHash    string
	ConfirmTokenHash string
	Attempts         int
	CreatedAt        time.Time
	State            OTPState
}

func (r OTPRecord) IsActive() bool {
	_, ok := r.State.(OTPActive)
	return ok
}

// InvalidatedAt returns the invalidation time, or nil while active.
func (r OTPRecord) InvalidatedAt() *time.Time {
	if s, ok := r.State.(OTPInvalidated); ok {
		return &s.At
	}
	return nil
}

func (r OTPRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
