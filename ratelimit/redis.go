package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter shares counters across replicas through Redis.
type RedisLimiter struct {
	Window time.Duration
	Prefix string

	client redis.Scripter
	now    func() time.Time
}

func NewRedis(client redis.Scripter, w time.Duration) *RedisLimiter {
	if w <= 0 {
		w = time.Minute
	}
	return &RedisLimiter{Window: w, Prefix: "homelinka:rl:", client: client, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	res, err := fixedWindow.Run(ctx, l.client, []string{l.Prefix + key}, l.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: redis: unexpected reply %v", res)
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.Window
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= limit, Remaining: remaining, ResetAt: l.now().Add(ttl)}, nil
}

// Open connects to the Redis server at url and verifies it with a ping.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return client, nil
}
