package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "relay:ratelimit:"

// RedisLimiter is a sliding-window limiter backed by Redis sorted sets,
// for deployments where relay state should survive restarts. On Redis
// errors it fails open: a degraded limiter must not take the bot down
// with it.
type RedisLimiter struct {
	client redis.Cmdable
	window time.Duration
	limit  int
}

// NewRedisLimiter creates a Redis-backed limiter allowing limit requests
// per window.
func NewRedisLimiter(client redis.Cmdable, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, limit: limit}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string) bool {
	key := rateKeyPrefix + userID
	now := time.Now()
	windowStart := float64(now.Add(-l.window).UnixMilli())

	// Compact the window first; the count decides admission, so a
	// rejected attempt leaves no member behind.
	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowStart, 'f', 0, 64))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("rate limiter: redis error, failing open", "error", err, "user_id", userID)
		return true
	}

	if countCmd.Val() >= int64(l.limit) {
		return false
	}

	pipe = l.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, StaleAfter)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("rate limiter: redis error recording admission", "error", err, "user_id", userID)
	}
	return true
}

// Cleanup is a no-op: the TTL refreshed on every admission lets Redis
// expire stale windows itself.
func (l *RedisLimiter) Cleanup(context.Context) {}
