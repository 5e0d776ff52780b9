package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/utafrali/storefront/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8000"`

	// Commerce API
	CommerceURL            string `env:"COMMERCE_API_URL" envDefault:"http://localhost:9000"`
	CommercePublishableKey string `env:"COMMERCE_PUBLISHABLE_KEY" envDefault:""`
	CommerceTimeoutSeconds int    `env:"COMMERCE_TIMEOUT_SECONDS" envDefault:"10"`
	RegionID               string `env:"COMMERCE_REGION_ID" envDefault:""`

	// Redis product cache
	ProductCacheEnabled    bool   `env:"PRODUCT_CACHE_ENABLED" envDefault:"true"`
	RedisAddr              string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass              string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB                int    `env:"REDIS_DB" envDefault:"0"`
	ProductCacheTTLSeconds int    `env:"PRODUCT_CACHE_TTL_SECONDS" envDefault:"300"`

	// Kafka
	KafkaEnabled    bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaDLQEnabled bool     `env:"KAFKA_DLQ_ENABLED" envDefault:"true"`

	// Session state
	SessionIdleTTLMinutes int `env:"SESSION_IDLE_TTL_MINUTES" envDefault:"30"`
	LoginSettleDelayMs    int `env:"LOGIN_SETTLE_DELAY_MS" envDefault:"100"`
	DropdownAutoCloseMs   int `env:"DROPDOWN_AUTO_CLOSE_MS" envDefault:"5000"`
	DropdownHoverGraceMs  int `env:"DROPDOWN_HOVER_GRACE_MS" envDefault:"200"`

	// Cookies and CORS
	CookieSecure       bool     `env:"COOKIE_SECURE" envDefault:"false"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`

	// Rate limiting
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow Redis command logging
	SlowCommandThresholdMs int `env:"LOG_SLOW_COMMAND_MS" envDefault:"100"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid storefront config: %w", err)
	}
	return cfg, nil
}

// validate reports every violated rule at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.HTTPPort >= 1 && c.HTTPPort <= 65535,
		"STOREFRONT_HTTP_PORT must be 1-65535, got %d", c.HTTPPort)
	check(strings.HasPrefix(c.CommerceURL, "http://") || strings.HasPrefix(c.CommerceURL, "https://"),
		"COMMERCE_API_URL must be an http(s) URL, got %q", c.CommerceURL)
	check(c.IsDevelopment() || c.CommercePublishableKey != "",
		"COMMERCE_PUBLISHABLE_KEY is required in %s", c.Environment)
	check(!c.KafkaEnabled || len(c.KafkaBrokers) > 0,
		"KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	check(c.OTELSampleRate >= 0 && c.OTELSampleRate <= 1,
		"OTEL_SAMPLE_RATE must be within [0, 1], got %g", c.OTELSampleRate)

	for _, f := range []struct {
		name  string
		value int
	}{
		{"COMMERCE_TIMEOUT_SECONDS", c.CommerceTimeoutSeconds},
		{"PRODUCT_CACHE_TTL_SECONDS", c.ProductCacheTTLSeconds},
		{"SESSION_IDLE_TTL_MINUTES", c.SessionIdleTTLMinutes},
		{"LOGIN_SETTLE_DELAY_MS", c.LoginSettleDelayMs},
		{"DROPDOWN_AUTO_CLOSE_MS", c.DropdownAutoCloseMs},
		{"DROPDOWN_HOVER_GRACE_MS", c.DropdownHoverGraceMs},
		{"RATE_LIMIT_RPS", c.RateLimitRPS},
		{"RATE_LIMIT_BURST", c.RateLimitBurst},
	} {
		check(f.value > 0, "%s must be positive, got %d", f.name, f.value)
	}
	return errors.Join(errs...)
}

// CommerceTimeout returns the per-request timeout for commerce API calls.
func (c *Config) CommerceTimeout() time.Duration {
	return time.Duration(c.CommerceTimeoutSeconds) * time.Second
}

// ProductCacheTTL returns how long enriched products stay cached.
func (c *Config) ProductCacheTTL() time.Duration {
	return time.Duration(c.ProductCacheTTLSeconds) * time.Second
}

// SessionIdleTTL returns how long an unused browser session keeps its state.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMinutes) * time.Minute
}

// LoginSettleDelay returns the wait between a login and the session refresh.
func (c *Config) LoginSettleDelay() time.Duration {
	return time.Duration(c.LoginSettleDelayMs) * time.Millisecond
}

// DropdownAutoClose returns how long a programmatically opened dropdown stays open.
func (c *Config) DropdownAutoClose() time.Duration {
	return time.Duration(c.DropdownAutoCloseMs) * time.Millisecond
}

// DropdownHoverGrace returns the delay before a dropdown closes on hover leave.
func (c *Config) DropdownHoverGrace() time.Duration {
	return time.Duration(c.DropdownHoverGraceMs) * time.Millisecond
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
