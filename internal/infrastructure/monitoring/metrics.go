package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	TokensIssued        *prometheus.CounterVec
	TokenVerifications  *prometheus.CounterVec
	TokenVerifyLatency  *prometheus.HistogramVec
	TokenRevocations    *prometheus.CounterVec
	RateLimitHits       *prometheus.CounterVec
	ServiceTrustChecks  *prometheus.CounterVec
	StoreFallbacks      *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TokensIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_tokens_issued_total",
				Help: "Total number of token pairs issued.",
			},
			[]string{"flow"},
		),
		TokenVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_token_verifications_total",
				Help: "Total number of token verifications.",
			},
			[]string{"kind", "result"},
		),
		TokenVerifyLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uniauth_token_verify_latency_seconds",
				Help:    "Latency of token verification including the revocation check.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		TokenRevocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_token_revocations_total",
				Help: "Total number of token revocations.",
			},
			[]string{"scope"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_rate_limit_hits_total",
				Help: "Total number of rejected requests per route.",
			},
			[]string{"route"},
		),
		ServiceTrustChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_service_trust_checks_total",
				Help: "Total number of cross-service trust verifications.",
			},
			[]string{"service", "result"},
		),
		StoreFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uniauth_store_fallbacks_total",
				Help: "Operations that degraded to a local fallback because the shared store was unreachable.",
			},
			[]string{"component"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uniauth_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// RecordTokenIssue records a successful pair issuance. Flow is "issue" or
// "refresh".
func (m *Metrics) RecordTokenIssue(flow string) {
	m.TokensIssued.WithLabelValues(flow).Inc()
}

// RecordTokenVerification records a verification outcome.
func (m *Metrics) RecordTokenVerification(kind, result string, duration time.Duration) {
	m.TokenVerifications.WithLabelValues(kind, result).Inc()
	m.TokenVerifyLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordTokenRevocation records a revocation. Scope is "single" or "all".
func (m *Metrics) RecordTokenRevocation(scope string) {
	m.TokenRevocations.WithLabelValues(scope).Inc()
}

// RecordRateLimitHit records a throttled request.
func (m *Metrics) RecordRateLimitHit(route string) {
	m.RateLimitHits.WithLabelValues(route).Inc()
}

// RecordServiceTrustCheck records a cross-service verification outcome.
func (m *Metrics) RecordServiceTrustCheck(service, result string) {
	m.ServiceTrustChecks.WithLabelValues(service, result).Inc()
}

// RecordStoreFallback records a degradation to a local fallback.
func (m *Metrics) RecordStoreFallback(component string) {
	m.StoreFallbacks.WithLabelValues(component).Inc()
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}
