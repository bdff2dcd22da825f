// Package redis implements the shared-store backends for revocation,
// session tracking and nonce replay protection.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soybean-admin/uniauth/internal/config"
	"github.com/soybean-admin/uniauth/pkg/logger"
)

// NewClient connects a standalone Redis client and verifies connectivity
// with a ping before returning it.
func NewClient(cfg *config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "redis connection established",
		logger.String("addr", cfg.Addr),
		logger.Int("db", cfg.DB),
		logger.Int("pool_size", cfg.PoolSize),
	)
	return client, nil
}
