package redis

import (
	"context"
	"fmt"
	"time"
)

type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow is a fixed-window counter: the first hit in a window sets its expiry.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func SubmitKey(userID string) string {
	return fmt.Sprintf("rate_limit:submit:%s", userID)
}

// SubmitLimiter allows perMinute advisory submissions per user.
type SubmitLimiter struct {
	rl        *RateLimiter
	perMinute int
}

func NewSubmitLimiter(rl *RateLimiter, perMinute int) *SubmitLimiter {
	return &SubmitLimiter{rl: rl, perMinute: perMinute}
}

func (s *SubmitLimiter) AllowSubmit(ctx context.Context, userID string) (bool, error) {
	return s.rl.Allow(ctx, SubmitKey(userID), s.perMinute, time.Minute)
}
