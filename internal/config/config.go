package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	// RedisURL is optional. Without it the gateway runs with rate
	// limiting and circuit breaking disabled.
	RedisURL string
	LogLevel string
	// OutcomeRetentionHours controls how long delivery outcomes are
	// kept before the prune loop removes them. Zero disables pruning.
	OutcomeRetentionHours int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", "info")
	retention := getEnvInt("OUTCOME_RETENTION_HOURS", 72)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		Port:                  port,
		DatabaseURL:           dbURL,
		RedisURL:              redisURL,
		LogLevel:              logLevel,
		OutcomeRetentionHours: retention,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
