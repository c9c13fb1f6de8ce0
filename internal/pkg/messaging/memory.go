package messaging

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process bus for local runs and tests. Each group gets
// every message once; failed deliveries are retried up to maxAttempts.
type Memory struct {
	mu     sync.Mutex
	groups map[string]map[string]chan Message
	seq    int64
	closed bool
}

const (
	memoryBuffer      = 256
	memoryMaxAttempts = 3
)

func NewMemory() *Memory {
	return &Memory{groups: make(map[string]map[string]chan Message)}
}

func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) error {
	if topic == "" {
		return ErrTopicRequired
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seq++
	delivery := Message{
		ID:        strconv.FormatInt(m.seq, 10),
		Topic:     topic,
		Body:      msg.Body,
		Headers:   msg.Headers,
		Timestamp: time.Now(),
		Attempt:   1,
	}
	targets := make([]chan Message, 0, len(m.groups[topic]))
	for _, ch := range m.groups[topic] {
		targets = append(targets, ch)
	}
	m.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- delivery:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Consume(ctx context.Context, topic string, h Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts)
	if err := validateConsume(ctx, topic, h, co); err != nil {
		return err
	}

	ch, err := m.subscribe(topic, co.group)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-ch:
					m.deliver(ctx, ch, h, msg)
				}
			}
		})
	}
	wg.Wait()

	m.mu.Lock()
	delete(m.groups[topic], co.group)
	m.mu.Unlock()
	return ctx.Err()
}

func (m *Memory) subscribe(topic, group string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.groups[topic] == nil {
		m.groups[topic] = make(map[string]chan Message)
	}
	ch, ok := m.groups[topic][group]
	if !ok {
		ch = make(chan Message, memoryBuffer)
		m.groups[topic][group] = ch
	}
	return ch, nil
}

func (m *Memory) deliver(ctx context.Context, ch chan Message, h Handler, msg Message) {
	if err := invoke(ctx, DriverMemory, h, msg); err == nil || msg.Attempt >= memoryMaxAttempts {
		return
	}
	msg.Attempt++
	select {
	case ch <- msg:
	default:
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
