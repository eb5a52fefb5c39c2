// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/partygames/internal/cache"
	"github.com/sirupsen/logrus"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port string

	Store       string
	DatabaseURL string

	RedisAddr  string
	RedisDB    int
	CacheLocal bool

	SessionLockTTL      time.Duration
	SweepSchedule       string
	ClockDefaultSeconds int
	TokenExpire         string

	// JWT keys; empty paths mean an ephemeral key pair.
	PrivateKeyPath string
	PublicKeyPath  string

	HistorianQueue     string
	HistorianBatchSize int
	HistorianFlush     time.Duration

	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
}

// Load builds a Config from the environment, falling back to defaults.
func Load() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		Store:               getEnv("STORE", StorePostgres),
		DatabaseURL:         databaseURL(),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		CacheLocal:          getEnvBool("CACHE_LOCAL", false),
		SessionLockTTL:      getEnvDuration("SESSION_LOCK_TTL", 10*time.Second),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 1m"),
		ClockDefaultSeconds: getEnvInt("CLOCK_DEFAULT_SECONDS", 60),
		TokenExpire:         os.Getenv("TOKEN_EXPIRE_TIME"),
		PrivateKeyPath:      os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:       os.Getenv("JWT_PUBLIC_KEY_PATH"),
		HistorianQueue:      getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:      time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
	}
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the PG_* parts.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		os.Getenv("PG_DATABASE"),
	)
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	if c.SessionLockTTL <= 0 {
		return fmt.Errorf("SESSION_LOCK_TTL must be positive")
	}
	if c.ClockDefaultSeconds < 0 {
		return fmt.Errorf("CLOCK_DEFAULT_SECONDS must not be negative")
	}
	if (c.PrivateKeyPath == "") != (c.PublicKeyPath == "") {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}

func getEnvDuration(key string, defVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defVal
	}
	return d
}

func getEnvBool(key string, defVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defVal
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
