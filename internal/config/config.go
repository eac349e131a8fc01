// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSecretLen is the minimum signing secret length (bytes) accepted in production.
const minSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production", "test").
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL selects the store: postgres://... (pgx) or sqlite://path (modernc sqlite).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`
	// MigrateOnStart applies embedded migrations when the server boots. Ignored in production.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`

	// RedisAddr enables the shared rate-limit counter store when set; empty keeps counters in process.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTAccessSecret signs access tokens. Must differ from JWTRefreshSecret.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim on both token kinds.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token and session lifetime (e.g. "168h").
	JWTRefreshTTL time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	// SessionCheck makes access-token verification also require the token's session
	// to be active, so logout takes effect before the access token expires.
	SessionCheck bool `mapstructure:"AUTH_SESSION_CHECK"`
	// BcryptCost is the bcrypt cost factor (4 to 31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RateLimitWindow and RateLimitMax bound requests per identity per window.
	RateLimitWindow time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax    int           `mapstructure:"RATE_LIMIT_MAX"`
	// LoginRateLimitMax bounds login attempts per e-mail per RateLimitWindow.
	LoginRateLimitMax int `mapstructure:"LOGIN_RATE_LIMIT_MAX"`

	// SecurityEventBuffer is the async security-event queue size; events are dropped when full.
	SecurityEventBuffer int `mapstructure:"SECURITY_EVENT_BUFFER"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint enables OpenTelemetry export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ISSUER", "siteauth")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("AUTH_SESSION_CHECK", false)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("LOGIN_RATE_LIMIT_MAX", 10)
	v.SetDefault("SECURITY_EVENT_BUFFER", 1024)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "siteauth")
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Validate checks the auth-critical settings. The server refuses to start on any error.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.IsProduction() {
		if len(c.JWTAccessSecret) < minSecretLen || len(c.JWTRefreshSecret) < minSecretLen {
			return fmt.Errorf("config: JWT secrets must be at least %d bytes in production", minSecretLen)
		}
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set in production")
		}
	}
	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return errors.New("config: JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}
	if c.JWTAccessTTL >= c.JWTRefreshTTL {
		return errors.New("config: JWT_ACCESS_TTL must be shorter than JWT_REFRESH_TTL")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return errors.New("config: RATE_LIMIT_WINDOW and RATE_LIMIT_MAX must be positive")
	}
	if c.LoginRateLimitMax < 0 {
		return errors.New("config: LOGIN_RATE_LIMIT_MAX must not be negative")
	}
	if c.SecurityEventBuffer <= 0 {
		c.SecurityEventBuffer = 1024
	}
	return nil
}
