// Package config loads runtime configuration from BUNKHOUSE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port   string
	DBPath string

	// JWTSecret signs session tokens. Required; there is no safe default.
	JWTSecret string
	TokenTTL  time.Duration

	LogLevel  string
	LogFormat string

	// Postmark delivery. Empty token disables outbound email; codes are
	// still issued and logged.
	PostmarkToken string
	EmailFrom     string

	// Google sign-in. All three must be set for the exchange endpoint to
	// be available.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	RateLimitBurst  int
	RateLimitWindow time.Duration
}

func Load() (*Config, error) {
	secret := os.Getenv("BUNKHOUSE_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("BUNKHOUSE_JWT_SECRET is required")
	}

	cfg := &Config{
		Port:      getEnv("BUNKHOUSE_PORT", "8080"),
		DBPath:    getEnv("BUNKHOUSE_DB_PATH", "bunkhouse.db"),
		JWTSecret: secret,
		TokenTTL:  time.Duration(readInt("BUNKHOUSE_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		LogLevel:  getEnv("BUNKHOUSE_LOG_LEVEL", "info"),
		LogFormat: getEnv("BUNKHOUSE_LOG_FORMAT", "text"),

		PostmarkToken: os.Getenv("BUNKHOUSE_POSTMARK_TOKEN"),
		EmailFrom:     getEnv("BUNKHOUSE_EMAIL_FROM", "noreply@bunkhouse.local"),

		GoogleClientID:     os.Getenv("BUNKHOUSE_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("BUNKHOUSE_GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  os.Getenv("BUNKHOUSE_GOOGLE_REDIRECT_URI"),

		RateLimitBurst:  readInt("BUNKHOUSE_RATE_LIMIT_BURST", 10),
		RateLimitWindow: time.Duration(readInt("BUNKHOUSE_RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
