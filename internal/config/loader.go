package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

// LoadConfig loads the configuration from file and environment variables.
// Environment variables use the UNIAUTH_ prefix with dots replaced by
// underscores, e.g. UNIAUTH_AUTH_ACCESS_TOKEN_SECRET.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/uniauth/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("UNIAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("auth.access_token_ttl", constants.DefaultAccessTokenTTL)
	v.SetDefault("auth.refresh_token_ttl", constants.DefaultRefreshTokenTTL)
	v.SetDefault("auth.issuer", constants.DefaultIssuer)
	v.SetDefault("auth.audience", constants.DefaultAudience)
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.enable_blacklist", true)
	v.SetDefault("auth.enable_sessions", true)
	v.SetDefault("auth.fail_open", false)

	v.SetDefault("service_trust.max_skew_ms", constants.DefaultServiceClockSkew.Milliseconds())
	v.SetDefault("service_trust.nonce_guard", true)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window_ms", 60_000)
	v.SetDefault("rate_limit.local_fallback", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "uniauth/jwt")

	v.SetDefault("audit.kafka_topic", "uniauth.audit")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "uniauth")
	v.SetDefault("tracing.sampling_rate", 0.1)
}
