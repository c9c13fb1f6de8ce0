// Package lock provides a Redis backed mutex for short critical sections
// that span processes, such as issuing an OTP for one phone number.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired means another holder owns the key.
	ErrNotAcquired = errors.New("lock: not acquired")
	// ErrNotHeld means the lock expired or was taken over before release.
	ErrNotHeld = errors.New("lock: not held")
)

const defaultTTL = 10 * time.Second

// Locker guards a key for the duration of fn.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type generator interface {
	Generate() string
}

// release deletes the key only if it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a single instance SET NX PX lock.
type Redis struct {
	client redis.Cmdable
	prefix string
	token  generator
}

func NewRedis(client redis.Cmdable, token generator) *Redis {
	return &Redis{client: client, prefix: "lock:", token: token}
}

// Acquire returns the token proving ownership.
func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	tok := l.token.Generate()
	ok, err := l.client.SetNX(ctx, l.prefix+key, tok, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotAcquired
	}
	return tok, nil
}

func (l *Redis) Release(ctx context.Context, key, token string) error {
	n, err := release.Run(ctx, l.client, []string{l.prefix + key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock runs fn while holding key. The release uses a fresh context so a
// canceled request still frees the key. When fn succeeded a failed release
// is only logged, since the key still expires after ttl.
func (l *Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	tok, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}

	fnErr := fn(ctx)

	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := l.Release(relCtx, key, tok); err != nil && !errors.Is(err, ErrNotHeld) {
		if fnErr == nil {
			slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
			return nil
		}
		return errors.Join(fnErr, err)
	}
	return fnErr
}

// Noop always grants the lock. Used when Redis is disabled; correctness then
// rests on the database guard alone.
type Noop struct{}

func (Noop) WithLock(ctx context.Context, _ string, _ time.Duration, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
