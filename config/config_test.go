package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, time.UTC.String(), cfg.App.Location.String())
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "console", cfg.Observability.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.False(t, cfg.UsesRedis())
	assert.False(t, cfg.Features.IsEnabled(FeatureSequentialUnlock, nil))
	assert.True(t, cfg.Features.IsEnabled(FeatureActivityFeed, nil))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_TIMEZONE", "Europe/Berlin")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/bible")
	t.Setenv("AUTH_JWT_SECRET", "a-very-long-test-secret")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_CACHE_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("FEATURE_LESSONS_SEQUENTIAL_UNLOCK", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "Europe/Berlin", cfg.App.Location.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "cache:6380", cfg.Redis.Address())
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.True(t, cfg.Features.IsEnabled(FeatureSequentialUnlock, nil))
}

func TestValidateAggregatesErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("AUTH_JWT_SECRET", "short")
	t.Setenv("ADMIN_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"APP_TIMEZONE", "DATABASE_URL", "AUTH_JWT_SECRET", "ADMIN_API_KEY"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestRedisAddressFromHostPort(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisConfig{Host: "localhost", Port: 6379}.Address())
}
