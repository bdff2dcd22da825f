// Package http assembles the gin engine: middleware chain, route table and
// server lifecycle.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/internal/domain/models"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/internal/interfaces/http/handlers"
	"github.com/soybean-admin/uniauth/internal/interfaces/http/middleware"
	appservice "github.com/soybean-admin/uniauth/internal/application/service"
	"github.com/soybean-admin/uniauth/pkg/constants"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// Router owns the gin engine and the HTTP server.
type Router struct {
	engine        *gin.Engine
	cfg           *config.Config
	log           logger.Logger
	authSvc       appservice.AuthAppService
	policy        *domainservice.AccessPolicy
	limiter       domainservice.RateLimiter
	nonces        domainservice.NonceStore
	audit         domainservice.AuditPublisher
	metrics       *monitoring.Metrics
	tracing       *monitoring.TracingManager
	authHandler   *handlers.AuthHandler
	healthHandler *handlers.HealthHandler
	server        *http.Server
}

// NewRouter creates the router. SetupRoutes must run before Start.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	authSvc appservice.AuthAppService,
	policy *domainservice.AccessPolicy,
	limiter domainservice.RateLimiter,
	nonces domainservice.NonceStore,
	auditPublisher domainservice.AuditPublisher,
	metrics *monitoring.Metrics,
	tracing *monitoring.TracingManager,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
) *Router {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Router{
		engine:        gin.New(),
		cfg:           cfg,
		log:           log,
		authSvc:       authSvc,
		policy:        policy,
		limiter:       limiter,
		nonces:        nonces,
		audit:         auditPublisher,
		metrics:       metrics,
		tracing:       tracing,
		authHandler:   authHandler,
		healthHandler: healthHandler,
	}
}

// SetupRoutes registers the middleware chain and the route table.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.tracing, r.metrics, r.log))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{
			"X-Request-ID",
			constants.HeaderRateLimitLimit,
			constants.HeaderRateLimitRemaining,
			constants.HeaderRateLimitReset,
			constants.HeaderRetryAfter,
		},
		MaxAge: 12 * time.Hour,
	}
	// An empty origin list means a wildcard. Credentials are only allowed
	// when origins are pinned; the wildcard combination is rejected by
	// browsers anyway.
	if len(r.cfg.Server.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = r.cfg.Server.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.engine.Use(cors.New(corsCfg))

	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if r.cfg.Server.Environment != "production" {
		pprof.Register(r.engine)
	}

	auth := r.engine.Group("/api/v1/auth")
	{
		// Rotation is necessarily unauthenticated: the access token may
		// already be expired. The refresh token itself is the credential.
		auth.POST("/refresh",
			r.limit(nil),
			r.guard(&models.RouteRequirement{Public: true}),
			r.authHandler.Refresh,
		)
		// Authentication runs before throttling so the window is keyed by
		// identity rather than source address.
		auth.POST("/revoke",
			r.guard(&models.RouteRequirement{}),
			r.limit(nil),
			r.authHandler.Revoke,
		)
		auth.POST("/revoke-all",
			r.guard(&models.RouteRequirement{Roles: []string{"admin"}}),
			r.limit(nil),
			r.authHandler.RevokeAll,
		)
		auth.GET("/verify",
			r.guard(&models.RouteRequirement{}),
			r.limit(nil),
			r.authHandler.Verify,
		)
		auth.GET("/sessions/:id",
			r.guard(&models.RouteRequirement{Roles: []string{"admin"}}),
			r.limit(nil),
			r.authHandler.Sessions,
		)
	}

	internal := r.engine.Group("/api/v1/internal")
	internal.Use(middleware.ServiceTrust(
		&r.cfg.ServiceTrust,
		&models.ServiceRequirement{AllowedServices: r.cfg.ServiceTrust.AllowedServices},
		r.nonces,
		r.audit,
		r.metrics,
		r.log,
	))
	{
		internal.GET("/echo", r.authHandler.Echo)
	}
}

func (r *Router) guard(req *models.RouteRequirement) gin.HandlerFunc {
	return middleware.Auth(r.authSvc, r.policy, req, r.log)
}

func (r *Router) limit(spec *models.RateLimitSpec) gin.HandlerFunc {
	return middleware.RateLimit(r.limiter, &r.cfg.RateLimit, spec, r.audit, r.metrics, r.log)
}

// Engine exposes the underlying engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start begins serving. It blocks until the listener fails or closes.
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Host, r.cfg.Server.Port)
	r.server = &http.Server{
		Addr:         addr,
		Handler:      r.engine,
		ReadTimeout:  time.Duration(r.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(r.cfg.Server.WriteTimeout) * time.Second,
	}

	r.log.Info(context.Background(), "http server starting", logger.String("addr", addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
