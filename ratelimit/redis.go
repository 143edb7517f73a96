package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter keys in the shared Redis instance.
const keyPrefix = "rl:"

// RedisLimiter is a sliding-window limiter backed by a Redis sorted set
// per key: score = request timestamp in milliseconds, member = timestamp
// plus a random tiebreaker so simultaneous requests stay distinct entries.
// Pruning is a single ZREMRANGEBYSCORE per check.
type RedisLimiter struct {
	client redis.Cmdable
	window time.Duration
	max    int
}

// RedisOption configures a RedisLimiter.
type RedisOption func(*RedisLimiter)

// WithWindow overrides the sliding window size.
func WithWindow(d time.Duration) RedisOption {
	return func(l *RedisLimiter) { l.window = d }
}

// WithMax overrides the admitted-request cap per window.
func WithMax(n int) RedisOption {
	return func(l *RedisLimiter) { l.max = n }
}

// NewRedisLimiter creates a limiter on the given client. The caller owns
// the client lifecycle.
func NewRedisLimiter(client redis.Cmdable, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client: client,
		window: DefaultWindow,
		max:    DefaultMax,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UnixMilli()
	windowStart := now - l.window.Milliseconds()
	redisKey := keyPrefix + key

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart, 10)).Err(); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: prune %q: %w", key, err)
	}

	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: count %q: %w", key, err)
	}

	if count >= int64(l.max) {
		return Decision{Allowed: false, RetryAfter: l.window}, nil
	}

	member := fmt.Sprintf("%d-%d", now, rand.Int64()) //nolint:gosec // tiebreaker, not security-sensitive
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: member})
	pipe.PExpire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: record %q: %w", key, err)
	}

	return Decision{Allowed: true}, nil
}
