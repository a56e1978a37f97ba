// Package config loads process configuration from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"abode/internal/queue"
)

type Config struct {
	// HTTPPort is the port the API listens on.
	HTTPPort string
	// DatabaseURL is the Postgres connection string. Empty switches the
	// process to the in-memory stores (development only).
	DatabaseURL string
	// RedisAddr is the dispatch queue's Redis address. Empty switches
	// dispatch to the in-memory recorder.
	RedisAddr string
	// DispatchQueue is the Redis list the farm drains.
	DispatchQueue string
	// FarmToken authenticates the farm's lifecycle callbacks.
	FarmToken string
	// SweepInterval is how often scheduled jobs are promoted.
	SweepInterval time.Duration

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		DispatchQueue:      getEnv("DISPATCH_QUEUE", queue.DefaultQueueName),
		FarmToken:          getEnv("FARM_TOKEN", ""),
		SweepInterval:      getDuration("SWEEP_INTERVAL", 15*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		CORSAllowedOrigins: getCSV("CORS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
