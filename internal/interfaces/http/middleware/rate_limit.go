package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/pkg/constants"
	apperrors "github.com/soybean-admin/uniauth/pkg/errors"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// RateLimit throttles a route with a sliding window keyed by the
// authenticated identity, or the client IP for anonymous traffic. A route
// may override the global limit through its RateLimitSpec.
func RateLimit(
	limiter domainservice.RateLimiter,
	cfg *config.RateLimitConfig,
	spec *models.RateLimitSpec,
	audit domainservice.AuditPublisher,
	metrics *monitoring.Metrics,
	log logger.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		max := cfg.MaxRequests
		window := cfg.Window()
		if spec != nil {
			if spec.MaxRequests > 0 {
				max = spec.MaxRequests
			}
			if spec.WindowMs > 0 {
				window = time.Duration(spec.WindowMs) * time.Millisecond
			}
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		subject := c.ClientIP()
		var identityID string
		if identity := IdentityFrom(c); identity != nil {
			subject = identity.ID
			identityID = identity.ID
		}

		result, err := limiter.Allow(c.Request.Context(), subject+":"+route, max, window)
		if err != nil {
			// The limiter stack already degraded as far as it could. Letting
			// the request through here would turn a store outage into an
			// unthrottled surface.
			log.Error(c.Request.Context(), "rate limit check failed", err, logger.String("route", route))
			AbortWithError(c, err)
			return
		}

		c.Header(constants.HeaderRateLimitLimit, strconv.FormatInt(result.Limit, 10))
		c.Header(constants.HeaderRateLimitRemaining, strconv.FormatInt(result.Remaining, 10))
		c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfterSec := int64(result.RetryAfter.Seconds() + 0.999)
			c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retryAfterSec, 10))
			metrics.RecordRateLimitHit(route)
			audit.Publish(c.Request.Context(), &models.AuditEvent{
				Type:       constants.AuditEventRateLimitExceeded,
				IdentityID: identityID,
				ClientIP:   c.ClientIP(),
				RequestID:  RequestIDFrom(c),
				Detail:     route,
			})
			AbortWithError(c, apperrors.ErrRateLimitExceeded(result.RetryAfter.Milliseconds()))
			return
		}

		c.Next()
	}
}
