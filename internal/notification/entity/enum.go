package entity

import "strings"

// Channel is how a message reaches its recipient.
type Channel int16

const (
	ChannelUnknown  Channel = 0
	ChannelLog      Channel = 1
	ChannelTelegram Channel = 2
	ChannelSMS      Channel = 3
	ChannelEmail    Channel = 4
)

func ChannelFromString(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "log":
		return ChannelLog
	case "telegram":
		return ChannelTelegram
	case "sms":
		return ChannelSMS
	case "email":
		return ChannelEmail
	default:
		return ChannelUnknown
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelLog:
		return "log"
	case ChannelTelegram:
		return "telegram"
	case ChannelSMS:
		return "sms"
	case ChannelEmail:
		return "email"
	default:
		return "unknown"
	}
}

type DeliveryStatus int16

const (
	DeliveryStatusUnknown DeliveryStatus = 0
	DeliveryStatusQueued  DeliveryStatus = 1
	DeliveryStatusSent    DeliveryStatus = 2
	DeliveryStatusFailed  DeliveryStatus = 3
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusQueued:
		return "queued"
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Purpose tags a delivery log with why the message was sent.
type Purpose string

const (
	PurposeOTP      Purpose = "otp"
	PurposeWelcome  Purpose = "welcome"
	PurposeSecurity Purpose = "security"
)
