// Package sms delivers messages through an HTTP SMS gateway that
// authenticates with a short lived bearer token.
package sms

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
	"go.opentelemetry.io/otel/codes"
)

var ErrRejected = errors.New("sms: message rejected")

type tokenSource interface {
	GetToken(ctx context.Context) (string, error)
	Invalidate()
}

type Config struct {
	BaseURL    string
	From       string
	MaxRetries uint64
	RetryBase  time.Duration
}

type SMS struct {
	cfg    Config
	tokens tokenSource
	client *http.Client
	ins    instrument.Instrumentation
}

func New(cfg Config, tokens tokenSource, client *http.Client, ins instrument.Instrumentation) *SMS {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &SMS{cfg: cfg, tokens: tokens, client: client, ins: ins}
}

type sendRequest struct {
	MobilePhone string `json:"mobile_phone"`
	Message     string `json:"message"`
	From        string `json:"from,omitempty"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send submits one SMS. A 401 drops the cached token and is retried with a
// fresh one, as are 5xx and 429 responses.
func (s *SMS) Send(ctx context.Context, destination, message string) (map[string]any, error) {
	ctx, span := s.ins.Tracer("notification.outbound.sms").Start(ctx, "Send")
	defer span.End()

	body, err := json.Marshal(sendRequest{
		MobilePhone: strings.TrimPrefix(destination, "+"),
		Message:     message,
		From:        s.cfg.From,
	})
	if err != nil {
		return nil, err
	}

	b := retry.NewExponential(s.cfg.RetryBase)
	b = retry.WithMaxRetries(s.cfg.MaxRetries, b)
	b = retry.WithCappedDuration(5*time.Second, b)

	var (
		out     sendResponse
		attempt int
	)
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		token, err := s.tokens.GetToken(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}

		status, err := s.post(ctx, token, body, &out)
		if err == nil {
			return nil
		}

		slog.WarnContext(ctx, "sms send attempt failed", "attempt", attempt, "status", status, "error", err)
		switch {
		case status == http.StatusUnauthorized:
			s.tokens.Invalidate()
			return retry.RetryableError(err)
		case status == 0, status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
			return retry.RetryableError(err)
		default:
			return err
		}
	})

	resp := map[string]any{"attempts": attempt}
	if out.ID != "" {
		resp["id"] = out.ID
	}
	if out.Status != "" {
		resp["status"] = out.Status
	}
	if out.Message != "" {
		resp["message"] = out.Message
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	return resp, nil
}

func (s *SMS) post(ctx context.Context, token string, body []byte, out *sendResponse) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/message/sms/send", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	if err != nil {
		return res.StatusCode, err
	}

	*out = sendResponse{}
	_ = json.Unmarshal(raw, out)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return res.StatusCode, fmt.Errorf("%w: status %d", ErrRejected, res.StatusCode)
	}

	return res.StatusCode, nil
}
