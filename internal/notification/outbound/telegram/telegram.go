// Package telegram delivers messages through the Bot API sendMessage call to
// a single configured chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrRejected = errors.New("telegram: message rejected")

type Config struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	MaxRetries uint64
	RetryBase  time.Duration
}

type Telegram struct {
	cfg    Config
	client *http.Client
	ins    instrument.Instrumentation
}

func New(cfg Config, client *http.Client, ins instrument.Instrumentation) *Telegram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Telegram{cfg: cfg, client: client, ins: ins}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts the message to the chat. Transient failures (5xx, 429, network)
// are retried with exponential backoff; other statuses fail immediately.
func (t *Telegram) Send(ctx context.Context, destination, message string) (map[string]any, error) {
	ctx, span := t.ins.Tracer("notification.outbound.telegram").Start(ctx, "Send")
	defer span.End()

	body, err := json.Marshal(sendMessageRequest{
		ChatID: t.cfg.ChatID,
		Text:   fmt.Sprintf("%s\n%s", destination, message),
	})
	if err != nil {
		return nil, err
	}

	b := retry.NewExponential(t.cfg.RetryBase)
	b = retry.WithMaxRetries(t.cfg.MaxRetries, b)
	b = retry.WithCappedDuration(5*time.Second, b)

	var (
		out     sendMessageResponse
		attempt int
	)
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		status, err := t.post(ctx, body, &out)
		if err != nil {
			slog.WarnContext(ctx, "telegram send attempt failed", "attempt", attempt, "status", status, "error", err)
			if status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	span.SetAttributes(attribute.Int("telegram.attempts", attempt))

	resp := map[string]any{"attempts": attempt}
	if out.Result.MessageID != 0 {
		resp["message_id"] = out.Result.MessageID
	}
	if out.Description != "" {
		resp["description"] = out.Description
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	return resp, nil
}

func (t *Telegram) post(ctx context.Context, body []byte, out *sendMessageResponse) (int, error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return res.StatusCode, err
	}

	*out = sendMessageResponse{}
	_ = json.Unmarshal(raw, out)

	if res.StatusCode != http.StatusOK || !out.OK {
		return res.StatusCode, fmt.Errorf("%w: status %d: %s", ErrRejected, res.StatusCode, out.Description)
	}

	return res.StatusCode, nil
}
