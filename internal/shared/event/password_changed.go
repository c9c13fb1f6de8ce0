package event

import "time"

const PasswordChangedDestination string = "identity.password.changed"
const PasswordChangedConsumerNotification string = "identity_password_changed_notification"

// PasswordChangedMessage is published after a reset or a change.
type PasswordChangedMessage struct {
	UserID      int64     `json:"user_id,string"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	Reason      string    `json:"reason"`
	ChangedAt   time.Time `json:"changed_at"`
}
