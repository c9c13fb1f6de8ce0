package event

import "time"

const UserActivatedDestination string = "identity.user.activated"
const UserActivatedConsumerNotification string = "identity_user_activated_notification"

type UserActivatedMessage struct {
	UserID      int64     `json:"user_id,string"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	FullName    string    `json:"full_name"`
	ActivatedAt time.Time `json:"activated_at"`
}
