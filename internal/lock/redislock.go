package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when the lock is already held elsewhere.
var ErrNotObtained = errors.New("lock: not obtained")

// Locker provides a Redis-backed distributed lock with try-once
// semantics: concurrent report runs are skipped, never queued.
type Locker struct {
	R *redis.Client
}

// WithLock executes fn while holding the lock for key. The lock is
// released when fn returns, even on error. When the lock is held by
// another process, ErrNotObtained is returned immediately.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotObtained
	}
	defer l.release(context.WithoutCancel(ctx), key, token)
	return fn(ctx)
}

func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	if err := l.R.Eval(ctx, script, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}
