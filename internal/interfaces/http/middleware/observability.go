package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/pkg/constants"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// Observability traces each request, records its latency, and writes the
// access log line.
func Observability(tracing *monitoring.TracingManager, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracing.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		if traceID := tracing.TraceID(ctx); traceID != "" {
			c.Set(string(constants.ContextKeyTraceID), traceID)
			withRequestValue(c, constants.ContextKeyTraceID, traceID)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", status))

		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("route", route),
			logger.Int("status", status),
			logger.Duration("duration", duration),
			logger.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error(c.Request.Context(), "request failed", nil, fields...)
		case status >= 400:
			log.Warn(c.Request.Context(), "request rejected", fields...)
		default:
			log.Info(c.Request.Context(), "request completed", fields...)
		}
	}
}
