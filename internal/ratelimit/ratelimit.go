// Package ratelimit throttles mutating share operations per entity with
// a redis-backed sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter allows at most limit events per key within the trailing
// window.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow records one event for key and reports whether it fits the
// window. Events older than the window are discarded first.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := "ratelimit:" + key

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	count := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return count.Val() < int64(l.limit), nil
}
