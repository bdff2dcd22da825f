package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/soybean-admin/uniauth/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Auth         AuthConfig         `mapstructure:"auth"`
	ServiceTrust ServiceTrustConfig `mapstructure:"service_trust"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Vault        VaultConfig        `mapstructure:"vault"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Log          LogConfig          `mapstructure:"log"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // in seconds
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig configures the token issuance/verification engine. The two
// signing secrets are deliberately separate: possession of one must not allow
// forging the other token class.
type AuthConfig struct {
	AccessTokenSecret  string `mapstructure:"access_token_secret"`
	RefreshTokenSecret string `mapstructure:"refresh_token_secret"`
	AccessTokenTTL     string `mapstructure:"access_token_ttl"`  // e.g. "2h"
	RefreshTokenTTL    string `mapstructure:"refresh_token_ttl"` // e.g. "7d"
	Issuer             string `mapstructure:"issuer"`
	Audience           string `mapstructure:"audience"`
	Algorithm          string `mapstructure:"algorithm"` // HS256, HS384, HS512
	EnableBlacklist    bool   `mapstructure:"enable_blacklist"`
	EnableSessions     bool   `mapstructure:"enable_sessions"`
	// FailOpen lets verification pass when the blacklist store is unreachable.
	// The default is fail-closed: a store outage rejects the request rather
	// than trusting a potentially revoked token.
	FailOpen bool `mapstructure:"fail_open"`

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// AccessTTL returns the parsed access token lifetime. Valid only after
// Validate has run.
func (c *AuthConfig) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the parsed refresh token lifetime.
func (c *AuthConfig) RefreshTTL() time.Duration { return c.refreshTTL }

type ServiceTrustConfig struct {
	Secret     string `mapstructure:"secret"`
	MaxSkewMs  int64  `mapstructure:"max_skew_ms"`
	NonceGuard bool   `mapstructure:"nonce_guard"`
	// AllowedServices restricts which calling services may reach the internal
	// routes. Empty admits any service with a valid signature.
	AllowedServices []string `mapstructure:"allowed_services"`
}

// MaxSkew returns the timestamp tolerance as a duration.
func (c *ServiceTrustConfig) MaxSkew() time.Duration {
	if c.MaxSkewMs <= 0 {
		return constants.DefaultServiceClockSkew
	}
	return time.Duration(c.MaxSkewMs) * time.Millisecond
}

type RateLimitConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	MaxRequests int64 `mapstructure:"max_requests"`
	WindowMs    int64 `mapstructure:"window_ms"`
	// LocalFallback switches to the in-process window when no Redis address is
	// configured. Single-process deployments only; counts are not shared.
	LocalFallback bool `mapstructure:"local_fallback"`
}

// Window returns the sliding window size as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`  // in seconds
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

// VaultConfig points at an optional HashiCorp Vault KV-v2 secret source. When
// Address is empty, secrets come from the environment/config file instead.
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

// AuditConfig selects zero or more audit sinks. Kafka and Postgres are both
// optional; with neither configured, audit events go to the structured log.
type AuditConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	PostgresDSN  string   `mapstructure:"postgres_dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// ttlPattern matches the TTL shorthand inherited from the environment
// contract: a positive integer followed by s, m, h or d.
var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL converts a TTL string like "2h" or "7d" into a duration. Unknown
// units fail here, at configuration load, not at request time.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ttl format %q (want <number><s|m|h|d>)", s)
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl value %q: %w", s, err)
	}

	switch m[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid ttl unit in %q", s)
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Validate checks the configuration and resolves TTL strings. A service
// started with a missing or weak secret must fail here, loudly, instead of
// running with a forgeable token surface.
func (c *Config) Validate() error {
	if len(c.Auth.AccessTokenSecret) < constants.MinSecretLength {
		return fmt.Errorf("auth.access_token_secret must be at least %d characters long", constants.MinSecretLength)
	}
	if len(c.Auth.RefreshTokenSecret) < constants.MinSecretLength {
		return fmt.Errorf("auth.refresh_token_secret must be at least %d characters long", constants.MinSecretLength)
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return fmt.Errorf("auth.access_token_secret and auth.refresh_token_secret must differ")
	}
	if len(c.ServiceTrust.Secret) < constants.MinSecretLength {
		return fmt.Errorf("service_trust.secret must be at least %d characters long", constants.MinSecretLength)
	}

	if c.Auth.Issuer == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if !supportedAlgorithms[c.Auth.Algorithm] {
		return fmt.Errorf("auth.algorithm must be one of HS256, HS384, HS512, got %q", c.Auth.Algorithm)
	}

	var err error
	if c.Auth.accessTTL, err = ParseTTL(c.Auth.AccessTokenTTL); err != nil {
		return fmt.Errorf("auth.access_token_ttl: %w", err)
	}
	if c.Auth.refreshTTL, err = ParseTTL(c.Auth.RefreshTokenTTL); err != nil {
		return fmt.Errorf("auth.refresh_token_ttl: %w", err)
	}
	if c.Auth.accessTTL >= c.Auth.refreshTTL {
		return fmt.Errorf("auth.access_token_ttl must be shorter than auth.refresh_token_ttl")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit.max_requests must be positive")
		}
		if c.RateLimit.WindowMs <= 0 {
			return fmt.Errorf("rate_limit.window_ms must be positive")
		}
	}

	return nil
}
