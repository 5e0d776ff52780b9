package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:9000", cfg.CommerceURL)
	assert.True(t, cfg.ProductCacheEnabled)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)

	assert.Equal(t, 10*time.Second, cfg.CommerceTimeout())
	assert.Equal(t, 5*time.Minute, cfg.ProductCacheTTL())
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL())
	assert.Equal(t, 100*time.Millisecond, cfg.LoginSettleDelay())
	assert.Equal(t, 5*time.Second, cfg.DropdownAutoClose())
	assert.Equal(t, 200*time.Millisecond, cfg.DropdownHoverGrace())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"port out of range", map[string]string{"STOREFRONT_HTTP_PORT": "70000"}, "STOREFRONT_HTTP_PORT must be 1-65535"},
		{"commerce url without scheme", map[string]string{"COMMERCE_API_URL": "localhost:9000"}, "COMMERCE_API_URL must be an http(s) URL"},
		{"missing key in staging", map[string]string{"ENVIRONMENT": "staging"}, "COMMERCE_PUBLISHABLE_KEY is required in staging"},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true", "KAFKA_BROKERS": ""}, "KAFKA_BROKERS is required"},
		{"sample rate above one", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE must be within [0, 1]"},
		{"zero auto close", map[string]string{"DROPDOWN_AUTO_CLOSE_MS": "0"}, "DROPDOWN_AUTO_CLOSE_MS must be positive"},
		{"negative rps", map[string]string{"RATE_LIMIT_RPS": "-1"}, "RATE_LIMIT_RPS must be positive"},
		{"unparsable number", map[string]string{"REDIS_DB": "two"}, "load storefront config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("LOGIN_SETTLE_DELAY_MS", "0")
	t.Setenv("DROPDOWN_HOVER_GRACE_MS", "-5")
	t.Setenv("OTEL_SAMPLE_RATE", "-0.1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOGIN_SETTLE_DELAY_MS")
	assert.Contains(t, err.Error(), "DROPDOWN_HOVER_GRACE_MS")
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE")
}

func TestLoad_Production(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("COMMERCE_PUBLISHABLE_KEY", "pk_live_123")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("SESSION_IDLE_TTL_MINUTES", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Minute, cfg.SessionIdleTTL())
}
