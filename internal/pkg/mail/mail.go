package mail

import (
	"context"
	"io"
)

// Message is a provider agnostic email.
type Message struct {
	// From falls back to the sender's configured address when empty.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail delivers messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
