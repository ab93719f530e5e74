package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	APIBaseURL            string
	HTTPTimeout           time.Duration
	StorePath             string
	DatabaseURL           string
	IDTokenAudience       string
	Port                  string
	LogLevel              string
	RateLimitVerification RateLimitConfig
	SessionTTL            time.Duration
	MaxSessions           int
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:      strings.TrimRight(getEnv("SIGNUP_API_BASE_URL", "http://localhost:3000"), "/"),
		HTTPTimeout:     parseDuration(getEnv("SIGNUP_HTTP_TIMEOUT", "15s"), 15*time.Second),
		StorePath:       getEnv("SIGNUP_STORE_PATH", ".signup.json"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		IDTokenAudience: os.Getenv("SIGNUP_ID_TOKEN_AUDIENCE"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		SessionTTL:      parseDuration(getEnv("SIGNUP_SESSION_TTL", "30m"), 30*time.Minute),
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_VERIFICATION", "3/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_VERIFICATION value: %w", err)
	}
	cfg.RateLimitVerification = rl

	maxSessions, err := strconv.Atoi(getEnv("SIGNUP_MAX_SESSIONS", "10000"))
	if err != nil || maxSessions <= 0 {
		return nil, fmt.Errorf("invalid SIGNUP_MAX_SESSIONS value: %q", os.Getenv("SIGNUP_MAX_SESSIONS"))
	}
	cfg.MaxSessions = maxSessions

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseDuration(input string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
