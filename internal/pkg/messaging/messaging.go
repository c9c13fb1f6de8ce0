package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shandysiswandi/konkurs/internal/pkg/stacktrace"
)

var (
	ErrTopicRequired   = errors.New("messaging: topic is required")
	ErrHandlerRequired = errors.New("messaging: handler is required")
	ErrGroupRequired   = errors.New("messaging: consumer group is required")
	ErrClosed          = errors.New("messaging: client is closed")
)

// Messaging is a broker client.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	Publish(ctx context.Context, topic string, msg OutgoingMessage) error
}

type Consumer interface {
	// Consume blocks until ctx is done or the subscription fails.
	Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error
}

// Handler processes one delivery.
type Handler func(ctx context.Context, msg Message) error

type OutgoingMessage struct {
	// Key orders messages on brokers that partition (Kafka, Pub/Sub).
	Key     []byte
	Body    []byte
	Headers map[string]string
}

// Message is a received delivery.
type Message struct {
	ID        string
	Topic     string
	Body      []byte
	Headers   map[string]string
	Timestamp time.Time
	// Attempt starts at 1.
	Attempt int
}

// Header returns a header value or "".
func (m Message) Header(key string) string {
	return m.Headers[key]
}

type consumeOptions struct {
	group       string
	concurrency int
}

// ConsumeOption tunes a subscription.
type ConsumeOption func(*consumeOptions)

// WithGroup names the load balancing group: Kafka consumer group, NSQ
// channel, NATS queue group or Pub/Sub subscription.
func WithGroup(name string) ConsumeOption {
	return func(o *consumeOptions) { o.group = name }
}

func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

func newConsumeOptions(opts []ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	co.concurrency = max(co.concurrency, 1)
	return co
}

func validateConsume(ctx context.Context, topic string, h Handler, co consumeOptions) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case topic == "":
		return ErrTopicRequired
	case h == nil:
		return ErrHandlerRequired
	case co.group == "":
		return ErrGroupRequired
	}
	return nil
}

// invoke runs h and turns a panic into an error so the message is retried
// instead of crashing the consumer.
func invoke(ctx context.Context, driver string, h Handler, msg Message) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in messaging handler", "driver", driver, "topic", msg.Topic, "because", rvr, "stack", stacktrace.Internal(2))
			err = fmt.Errorf("messaging: panic in %s handler: %v", driver, rvr)
		}
	}()
	return h(ctx, msg)
}
