// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Product API (remote source)
	ProductsAPIURL   string        `env:"PRODUCTS_API_URL" envDefault:"https://ga.passio.eco/api/v3/products"`
	ProductsAPIToken string        `env:"PRODUCTS_API_TOKEN" envDefault:""`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	UpstreamRPS      int           `env:"UPSTREAM_RPS" envDefault:"10"`
	UpstreamBurst    int           `env:"UPSTREAM_BURST" envDefault:"5"`

	// Which source serves product queries at boot: remote or tabular.
	// Switchable at runtime through the admin API.
	DataSource string `env:"DATA_SOURCE" envDefault:"remote"`

	// Display currency applied to tabular rows.
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"THB"`

	// Link cloaking
	CloakToken   string `env:"CLOAK_TOKEN" envDefault:""`
	CloakBaseURL string `env:"CLOAK_BASE_URL" envDefault:""`

	// Tabular fallback source: a bundled file or a remote URL used when
	// no per-category uploads exist.
	TabularFallbackPath string `env:"TABULAR_FALLBACK_PATH" envDefault:""`
	TabularFallbackURL  string `env:"TABULAR_FALLBACK_URL" envDefault:""`

	// Cache lifetimes
	PageCacheTTL    time.Duration `env:"PAGE_CACHE_TTL" envDefault:"5m"`
	TabularCacheTTL time.Duration `env:"TABULAR_CACHE_TTL" envDefault:"10m"`

	// Cache (Redis). Empty runs on the in-memory store.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Admin access: argon2id hash of the admin bearer token. Empty
	// disables the admin surface.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH" envDefault:""`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for the redirect endpoint
	RateLimitRedirectEnabled bool `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRPS     int  `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"50"`
	RateLimitRedirectBurst   int  `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`

	// Click recorder buffer
	ClickBuffer int `env:"CLICK_BUFFER" envDefault:"1024"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load parses environment variables and returns a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
