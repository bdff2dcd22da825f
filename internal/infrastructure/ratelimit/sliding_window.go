// Package ratelimit provides distributed sliding-window rate limiting over
// Redis, with an in-process fallback for store outages.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.RateLimiter = (*SlidingWindowLimiter)(nil)

// SlidingWindowLimiter counts requests in a Redis sorted set scored by epoch
// milliseconds. Each call prunes entries older than the window, records the
// current request, and counts what remains, all inside one MULTI/EXEC so
// concurrent callers across instances observe a consistent window.
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewSlidingWindowLimiter creates the Redis-backed limiter.
func NewSlidingWindowLimiter(client redis.UniversalClient, log logger.Logger) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		log:    log.WithComponent("rate_limiter"),
	}
}

// Allow records one request against the key and reports whether it fits in
// the window. Rejected requests still count toward the window, so a client
// hammering past the limit never gets back in early.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (*service.RateLimitResult, error) {
	redisKey := constants.KeyPrefixRateLimit + key
	now := time.Now()
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	// A stalled store must not stall the request. The bounded context turns a
	// hang into StoreUnavailable, which the fallback limiter knows how to
	// absorb.
	ctx, cancel := context.WithTimeout(ctx, constants.StoreOpTimeout)
	defer cancel()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(nowMs-windowMs, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowMs), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error(ctx, "rate limit window update failed", err, logger.String("key", key))
		return nil, apperrors.ErrStoreUnavailable.WithCause(err)
	}

	count := countCmd.Val()
	result := &service.RateLimitResult{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: max - count,
		ResetAt:   now.Add(window),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if result.Allowed {
		return result, nil
	}

	// Derive the wait from the oldest entry still inside the window.
	oldest, err := l.client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
	if err == nil && len(oldest) > 0 {
		oldestMs := int64(oldest[0].Score)
		result.ResetAt = time.UnixMilli(oldestMs + windowMs)
		result.RetryAfter = time.Until(result.ResetAt)
	}
	if result.RetryAfter <= 0 {
		result.RetryAfter = time.Second
	}

	l.log.Warn(ctx, "rate limit exceeded",
		logger.String("key", key),
		logger.Int64("count", count),
		logger.Int64("limit", max),
		logger.Duration("retry_after", result.RetryAfter),
	)
	return result, nil
}
