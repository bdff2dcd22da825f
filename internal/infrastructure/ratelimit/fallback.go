package ratelimit

import (
	"context"
	"time"

	"github.com/soybean-admin/uniauth/internal/domain/service"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.RateLimiter = (*FallbackLimiter)(nil)

// FallbackLimiter fronts the shared-store limiter with an in-process one.
// When the store is unreachable the local window keeps a degraded per-
// instance limit instead of letting traffic through uncounted.
type FallbackLimiter struct {
	primary  service.RateLimiter
	fallback service.RateLimiter
	log      logger.Logger
}

// NewFallbackLimiter wraps primary with local, per-instance degradation.
func NewFallbackLimiter(primary, fallback service.RateLimiter, log logger.Logger) *FallbackLimiter {
	return &FallbackLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log.WithComponent("fallback_rate_limiter"),
	}
}

// Allow delegates to the shared-store limiter and degrades to the local
// window only on store unavailability. Other errors pass through.
func (l *FallbackLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (*service.RateLimitResult, error) {
	result, err := l.primary.Allow(ctx, key, max, window)
	if err == nil {
		return result, nil
	}
	if !apperrors.Is(err, apperrors.ErrStoreUnavailable) {
		return nil, err
	}

	l.log.Warn(ctx, "shared rate limit store unavailable, using local window",
		logger.String("key", key),
		logger.Err(err),
	)
	return l.fallback.Allow(ctx, key, max, window)
}
