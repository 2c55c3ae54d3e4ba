package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow INCR + EXPIRE 原子执行
var fixedWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
	return 0
end
return 1
`)

// Limiter is a fixed-window counter per key.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter allows limit hits per window for each key.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 20
	}
	if window < time.Second {
		window = 10 * time.Second
	}
	return &Limiter{
		client: client,
		prefix: "srcchat:ratelimit:",
		limit:  limit,
		window: window,
	}
}

// Key returns the Redis key used for a logical limiter key.
func (l *Limiter) Key(key string) string {
	return l.prefix + key
}

// Allow counts one hit and reports whether it is within the window limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindow.Run(ctx, l.client, []string{l.Key(key)}, l.limit, int(l.window.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return res == 1, nil
}
