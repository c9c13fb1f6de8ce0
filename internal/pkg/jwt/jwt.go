package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("invalid JWT signing method")
	ErrSigningKeyTooShort   = errors.New("HS512 signing key must be at least 64 bytes")
	ErrTokenExpired         = errors.New("JWT token has expired")
	ErrInvalidToken         = errors.New("invalid token")
)

// JWT issues and checks access tokens.
type JWT interface {
	Generate(sub Subject) (Token, error)
	// Verify rejects expired, malformed and foreign tokens.
	Verify(tokenStr string) (Claims, error)
}

// Subject is what an access token asserts about its bearer.
type Subject struct {
	UserID   int64
	Role     string
	IsActive bool
}

// Token is a signed access token plus the bits callers persist about it.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	Clock     clocker
	UUID      generator
}

// Claims are the registered claims plus the role and activation state
// consumed by the authorization gate.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id,string"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type authKey struct{}

// GetAuth returns the claims stored by the auth middleware, or nil.
func GetAuth(ctx context.Context) *Claims {
	clm, ok := ctx.Value(authKey{}).(Claims)
	if !ok {
		return nil
	}
	return &clm
}

func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, authKey{}, clm)
}
