package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "DATABASE_URL", "REDIS_ADDR", "SESSION_LOCK_TTL", "SWEEP_SCHEDULE", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	t.Setenv("PG_DATABASE", "partygames")

	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, StorePostgres, c.Store)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 10*time.Second, c.SessionLockTTL)
	assert.Equal(t, "@every 1m", c.SweepSchedule)
	assert.Equal(t, "partygames_events", c.HistorianQueue)
	assert.Contains(t, c.DatabaseURL, "@localhost:5432/partygames")
	assert.Empty(t, c.AllowedOrigins)
	require.NoError(t, c.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")
	t.Setenv("STORE", "memory")
	t.Setenv("SESSION_LOCK_TTL", "3s")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_LOCAL", "true")
	t.Setenv("HISTORIAN_FLUSH_MS", "250")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org ,")

	c := Load()
	assert.Equal(t, "postgres://u:p@db:5432/x", c.DatabaseURL)
	assert.Equal(t, StoreMemory, c.Store)
	assert.Equal(t, 3*time.Second, c.SessionLockTTL)
	assert.Equal(t, 2, c.RedisDB)
	assert.True(t, c.CacheLocal)
	assert.Equal(t, 250*time.Millisecond, c.HistorianFlush)
	assert.Equal(t, []string{"example.com", "*.example.org"}, c.AllowedOrigins)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("SESSION_LOCK_TTL", "soon")
	t.Setenv("CACHE_LOCAL", "maybe")

	c := Load()
	assert.Equal(t, 0, c.RedisDB)
	assert.Equal(t, 10*time.Second, c.SessionLockTTL)
	assert.False(t, c.CacheLocal)
}

func TestValidate(t *testing.T) {
	c := Config{Store: StoreMemory, SessionLockTTL: time.Second}
	require.NoError(t, c.Validate())

	bad := c
	bad.Store = "sqlite"
	assert.Error(t, bad.Validate())

	bad = c
	bad.PrivateKeyPath = "key.pem"
	assert.Error(t, bad.Validate())

	bad = c
	bad.SessionLockTTL = 0
	assert.Error(t, bad.Validate())
}

func TestNewLogger(t *testing.T) {
	c := Config{LogLevel: "debug", LogFormat: "json"}
	logger, err := c.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = Config{LogLevel: "loud"}.NewLogger()
	assert.Error(t, err)
}
