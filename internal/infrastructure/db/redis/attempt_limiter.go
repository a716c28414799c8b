package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmledger/access-codes/internal/core/domain"
)

const (
	defaultMaxAttempts = 10
	defaultWindow      = 15 * time.Minute
)

// acquireAttemptLua counts one attempt and starts the window on the first.
//
// KEYS[1] = counter key
// ARGV[1] = window in milliseconds
var acquireAttemptLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// releaseAttemptLua gives back one attempt without recreating an expired key.
//
// KEYS[1] = counter key
var releaseAttemptLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
  redis.call('DEL', KEYS[1])
end
return n
`)

// AttemptLimiter counts access code attempts per key in fixed windows.
// An attempt is reserved before the code is checked, so concurrent requests
// cannot overshoot the budget. Key format: accesscode:attempts:<key>
type AttemptLimiter struct {
	client      redis.UniversalClient
	maxAttempts int64
	window      time.Duration
}

// NewAttemptLimiter returns a limiter allowing maxAttempts failures per window.
// Non-positive values fall back to 10 attempts per 15 minutes.
func NewAttemptLimiter(client redis.UniversalClient, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &AttemptLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

// Acquire reserves one attempt and returns domain.ErrTooManyAttempts when the
// reservation goes over budget. Refused reservations stay counted until the
// window closes.
func (l *AttemptLimiter) Acquire(ctx context.Context, key string) error {
	count, err := acquireAttemptLua.Run(ctx, l.client, []string{l.key(key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("attempt acquire: %w", err)
	}
	if count > l.maxAttempts {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// Release returns an attempt that was not rejected as a bad code.
func (l *AttemptLimiter) Release(ctx context.Context, key string) error {
	if err := releaseAttemptLua.Run(ctx, l.client, []string{l.key(key)}).Err(); err != nil {
		return fmt.Errorf("attempt release: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("attempt reset: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) key(key string) string {
	return "accesscode:attempts:" + key
}
