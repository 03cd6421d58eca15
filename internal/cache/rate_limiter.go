package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every server instance.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per window for each client.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow counts one hit for client and reports whether it is within the limit,
// along with the hits remaining in the current window.
func (l *RateLimiter) Allow(ctx context.Context, client string) (bool, int, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}

	windowSecs := int64(l.window / time.Second)
	if windowSecs <= 0 {
		windowSecs = 1
	}
	bucket := l.now().Unix() / windowSecs
	key := config.CacheKey.JoinRateKey(client, bucket)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Duration(windowSecs)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.limit, remaining, nil
}
