// Package revocation answers "was this access token logged out?" on every
// authenticated request.
//
// Lookups go through an in-process cache, then Redis, then Postgres, which
// is the source of truth. Only positive answers are cached; a revoked token
// stays revoked until it would have expired anyway.
package revocation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store is the durable blacklist.
type Store interface {
	// Lookup reports the expiry of a blacklisted digest.
	Lookup(ctx context.Context, digest string) (expiresAt time.Time, found bool, err error)
}

type digester interface {
	Digest(plaintext string) string
}

type clocker interface {
	Now() time.Time
}

type Config struct {
	Store  Store
	Redis  redis.Cmdable
	Hasher digester
	Clock  clocker
	// LocalTTL caps how long the in-process cache keeps an entry.
	LocalTTL time.Duration
}

// Checker implements the three tier lookup.
type Checker struct {
	store  Store
	redis  redis.Cmdable
	hasher digester
	clock  clocker
	local  *gocache.Cache
	ttl    time.Duration
}

const keyPrefix = "revoked:"

func New(cfg Config) *Checker {
	ttl := cfg.LocalTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Checker{
		store:  cfg.Store,
		redis:  cfg.Redis,
		hasher: cfg.Hasher,
		clock:  cfg.Clock,
		local:  gocache.New(ttl, time.Minute),
		ttl:    ttl,
	}
}

// Digest is the key under which a raw token is blacklisted.
func (c *Checker) Digest(token string) string {
	return c.hasher.Digest(token)
}

// IsRevoked returns an error only when the durable store cannot answer.
// Cache failures degrade to the store.
func (c *Checker) IsRevoked(ctx context.Context, token string) (bool, error) {
	digest := c.Digest(token)

	if _, ok := c.local.Get(digest); ok {
		return true, nil
	}

	if c.redis != nil {
		ttl, err := c.redis.PTTL(ctx, keyPrefix+digest).Result()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			slog.WarnContext(ctx, "failed to read revocation cache", "error", err)
		case ttl > 0:
			c.local.Set(digest, struct{}{}, min(ttl, c.ttl))
			return true, nil
		}
	}

	expiresAt, found, err := c.store.Lookup(ctx, digest)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	c.Remember(ctx, digest, expiresAt)
	return true, nil
}

// Remember writes a revoked digest through both caches. Called after the
// blacklist row is committed.
func (c *Checker) Remember(ctx context.Context, digest string, expiresAt time.Time) {
	left := expiresAt.Sub(c.clock.Now())
	if left <= 0 {
		return
	}

	c.local.Set(digest, struct{}{}, min(left, c.ttl))

	if c.redis != nil {
		if err := c.redis.Set(ctx, keyPrefix+digest, 1, left).Err(); err != nil {
			slog.WarnContext(ctx, "failed to write revocation cache", "error", err)
		}
	}
}
