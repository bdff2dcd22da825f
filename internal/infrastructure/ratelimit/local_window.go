package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

var _ service.RateLimiter = (*LocalWindowLimiter)(nil)

// LocalWindowLimiter keeps sliding windows in process memory. It only guards
// a single instance, so it serves as a degraded fallback when the shared
// store is unreachable, not as the primary limiter.
type LocalWindowLimiter struct {
	windows *gocache.Cache
	mu      sync.Mutex
	log     logger.Logger
}

type localWindow struct {
	entries []int64 // epoch ms, ascending
}

// NewLocalWindowLimiter creates the in-process limiter. Idle windows are
// evicted by the cache once they have been quiet for their full duration.
func NewLocalWindowLimiter(log logger.Logger) *LocalWindowLimiter {
	return &LocalWindowLimiter{
		windows: gocache.New(5*time.Minute, 10*time.Minute),
		log:     log.WithComponent("local_rate_limiter"),
	}
}

// Allow records one request and reports whether it fits in the window.
func (l *LocalWindowLimiter) Allow(_ context.Context, key string, max int64, window time.Duration) (*service.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	var win *localWindow
	if cached, ok := l.windows.Get(key); ok {
		win = cached.(*localWindow)
	} else {
		win = &localWindow{}
	}

	// Drop entries that have slid out of the window.
	cutoff := nowMs - windowMs
	keep := win.entries[:0]
	for _, ts := range win.entries {
		if ts > cutoff {
			keep = append(keep, ts)
		}
	}
	win.entries = append(keep, nowMs)
	l.windows.Set(key, win, window)

	count := int64(len(win.entries))
	result := &service.RateLimitResult{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: max - count,
		ResetAt:   now.Add(window),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.ResetAt = time.UnixMilli(win.entries[0] + windowMs)
		result.RetryAfter = time.Until(result.ResetAt)
		if result.RetryAfter <= 0 {
			result.RetryAfter = time.Second
		}
	}
	return result, nil
}
