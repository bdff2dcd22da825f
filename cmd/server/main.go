package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	appservice "github.com/soybean-admin/uniauth/internal/application/service"
	"github.com/soybean-admin/uniauth/internal/config"
	domainservice "github.com/soybean-admin/uniauth/internal/domain/service"
	"github.com/soybean-admin/uniauth/internal/infrastructure/audit"
	"github.com/soybean-admin/uniauth/internal/infrastructure/crypto"
	"github.com/soybean-admin/uniauth/internal/infrastructure/monitoring"
	"github.com/soybean-admin/uniauth/internal/infrastructure/postgres"
	"github.com/soybean-admin/uniauth/internal/infrastructure/ratelimit"
	redisinfra "github.com/soybean-admin/uniauth/internal/infrastructure/redis"
	"github.com/soybean-admin/uniauth/internal/infrastructure/secrets"
	httpserver "github.com/soybean-admin/uniauth/internal/interfaces/http"
	"github.com/soybean-admin/uniauth/internal/interfaces/http/handlers"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	ctx := context.Background()

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}

	redisClient, err := redisinfra.NewClient(&cfg.Redis, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to redis", err)
	}

	// Signing secrets come from Vault when configured, otherwise from the
	// environment/config file.
	var secretSource domainservice.SecretSource = secrets.NewStaticSource(&cfg.Auth)
	if cfg.Vault.Address != "" {
		vaultSource, err := secrets.NewVaultSource(&cfg.Vault, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create vault secret source", err)
		}
		secretSource = vaultSource
	}
	accessSecret, refreshSecret, err := secretSource.SigningSecrets(ctx)
	if err != nil {
		appLogger.Fatal(ctx, "failed to resolve signing secrets", err)
	}
	if err := secrets.Validate(accessSecret, refreshSecret); err != nil {
		appLogger.Fatal(ctx, "resolved signing secrets are unusable", err)
	}

	tokens, err := crypto.NewJWTManager(crypto.Config{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL(),
		RefreshTTL:    cfg.Auth.RefreshTTL(),
		Issuer:        cfg.Auth.Issuer,
		Audience:      cfg.Auth.Audience,
		Algorithm:     cfg.Auth.Algorithm,
	}, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to create token engine", err)
	}

	metrics := monitoring.NewMetrics()

	auditPublisher := buildAuditPublisher(ctx, cfg, appLogger)
	defer func() {
		if err := auditPublisher.Close(); err != nil {
			appLogger.Error(ctx, "failed to close audit publisher", err)
		}
	}()

	var limiter domainservice.RateLimiter = ratelimit.NewSlidingWindowLimiter(redisClient, appLogger)
	if cfg.RateLimit.LocalFallback {
		limiter = ratelimit.NewFallbackLimiter(limiter, ratelimit.NewLocalWindowLimiter(appLogger), appLogger)
	}

	authSvc := appservice.NewAuthAppService(
		tokens,
		redisinfra.NewBlacklistStore(redisClient, appLogger),
		redisinfra.NewSessionStore(redisClient, appLogger),
		auditPublisher,
		metrics,
		&cfg.Auth,
		appLogger,
	)

	router := httpserver.NewRouter(
		cfg,
		appLogger,
		authSvc,
		domainservice.NewAccessPolicy(),
		limiter,
		redisinfra.NewNonceStore(redisClient, appLogger),
		auditPublisher,
		metrics,
		tracing,
		handlers.NewAuthHandler(authSvc, appLogger),
		handlers.NewHealthHandler(redisClient),
	)
	router.SetupRoutes()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return router.Start()
	})

	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sig:
			appLogger.Info(gctx, "shutdown signal received", logger.String("signal", s.String()))
		case <-gctx.Done():
			return gctx.Err()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := router.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "http server shutdown failed", err)
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "tracing shutdown failed", err)
		}
		if err := redisClient.Close(); err != nil {
			appLogger.Error(shutdownCtx, "redis close failed", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		appLogger.Fatal(ctx, "server exited with error", err)
	}
	appLogger.Info(ctx, "server stopped")
}

// buildAuditPublisher assembles the audit sinks: Kafka and Postgres when
// configured, the structured log otherwise.
func buildAuditPublisher(ctx context.Context, cfg *config.Config, log logger.Logger) domainservice.AuditPublisher {
	var sinks audit.Multi

	if len(cfg.Audit.KafkaBrokers) > 0 {
		sinks = append(sinks, audit.NewKafkaProducer(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, log))
	}
	if cfg.Audit.PostgresDSN != "" {
		repo, err := postgres.NewAuditRepository(ctx, cfg.Audit.PostgresDSN, log)
		if err != nil {
			log.Error(ctx, "audit postgres unavailable, continuing without it", err)
		} else {
			sinks = append(sinks, repo)
		}
	}
	if len(sinks) == 0 {
		return audit.NewLogSink(log)
	}
	return sinks
}
