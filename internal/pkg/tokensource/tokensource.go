// Package tokensource caches a bearer token for an outbound gateway and
// refreshes it once, no matter how many callers notice it expired.
package tokensource

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyToken is returned when the fetcher yields no access token.
var ErrEmptyToken = errors.New("tokensource: empty token")

// Token is a bearer credential with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Fetcher obtains a fresh token from the gateway.
type Fetcher interface {
	Fetch(ctx context.Context) (Token, error)
}

type clocker interface {
	Now() time.Time
}

// Source hands out a cached token and refreshes it Leeway before expiry.
type Source struct {
	fetcher Fetcher
	clock   clocker
	leeway  time.Duration

	mu  sync.RWMutex
	tok Token
	sf  singleflight.Group
}

func New(fetcher Fetcher, clock clocker, leeway time.Duration) *Source {
	return &Source{fetcher: fetcher, clock: clock, leeway: leeway}
}

func (s *Source) fresh() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok.Value == "" || !s.clock.Now().Add(s.leeway).Before(s.tok.ExpiresAt) {
		return "", false
	}
	return s.tok.Value, true
}

// GetToken returns the cached token or refreshes it. Concurrent callers
// share one refresh.
func (s *Source) GetToken(ctx context.Context) (string, error) {
	if v, ok := s.fresh(); ok {
		return v, nil
	}

	v, err, _ := s.sf.Do("token", func() (any, error) {
		if v, ok := s.fresh(); ok {
			return v, nil
		}

		tok, err := s.fetcher.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		if tok.Value == "" {
			return "", ErrEmptyToken
		}

		s.mu.Lock()
		s.tok = tok
		s.mu.Unlock()
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, e.g. after the gateway answered 401.
func (s *Source) Invalidate() {
	s.mu.Lock()
	s.tok = Token{}
	s.mu.Unlock()
}

// ClientCredentials fetches tokens with the OAuth2 client credentials grant.
type ClientCredentials struct {
	cfg *clientcredentials.Config
}

func NewClientCredentials(tokenURL, clientID, clientSecret string, scopes ...string) *ClientCredentials {
	return &ClientCredentials{cfg: &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}}
}

func (c *ClientCredentials) Fetch(ctx context.Context) (Token, error) {
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: tok.AccessToken, ExpiresAt: tok.Expiry}, nil
}
