package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu          sync.Mutex
	gen         int
	invalidated int
}

func (f *fakeTokens) GetToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen == 0 {
		f.gen = 1
	}
	return "tok-" + strconv.Itoa(f.gen), nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.gen++
}

func newSMS(url string, tokens tokenSource) *SMS {
	return New(Config{BaseURL: url, From: "4546", MaxRetries: 2, RetryBase: time.Millisecond}, tokens, nil, instrument.NewNoop())
}

func TestSMS_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sms/send", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "998901234567", req.MobilePhone)
		assert.Equal(t, "Your code: 12345", req.Message)
		assert.Equal(t, "4546", req.From)

		_, _ = w.Write([]byte(`{"id":"abc","status":"waiting"}`))
	}))
	defer srv.Close()

	resp, err := newSMS(srv.URL, &fakeTokens{}).Send(context.Background(), "+998901234567", "Your code: 12345")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp["id"])
	assert.Equal(t, "waiting", resp["status"])
}

func TestSMS_SendRefreshesTokenOnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"def","status":"waiting"}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{}
	resp, err := newSMS(srv.URL, tokens).Send(context.Background(), "+998901234567", "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, tokens.invalidated)
	assert.Equal(t, 2, resp["attempts"])
}

func TestSMS_SendClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid phone"}`))
	}))
	defer srv.Close()

	resp, err := newSMS(srv.URL, &fakeTokens{}).Send(context.Background(), "+998901234567", "hi")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "invalid phone", resp["message"])
}

func TestSMS_SendServerErrorExhausts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newSMS(srv.URL, &fakeTokens{}).Send(context.Background(), "+998901234567", "hi")
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(3), calls.Load())
}
