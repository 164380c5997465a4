// Package config provides configuration management for the dashboard.
//
// This package handles loading configuration from environment variables,
// validating required settings, and providing sensible defaults for optional
// parameters. Configuration is loaded once at startup and remains immutable
// during runtime.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. External .env file in the working directory
//  3. Embedded .env file (fallback, included in binary)
//  4. Hard-coded defaults (lowest priority)
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// embeddedEnv contains the .env file embedded at build time.
//
// It only carries non-secret defaults. Telegram credentials must come from
// the real environment or an external .env.
//
//go:embed .env
var embeddedEnv string

// Config holds all application configuration.
type Config struct {
	// Backend API
	APIBaseURL   string        // Base URL of the complaints backend
	HTTPTimeout  time.Duration // HTTP client timeout per request
	HTTPMaxConns int           // Maximum idle HTTP connections in pool
	APIRateLimit float64       // Requests per second allowed towards the backend (0 = unlimited)

	// Query cache
	CacheStaleTime  time.Duration // How long a fetched value counts as fresh
	CacheRetryCount int           // Silent retries before a query reports failure
	CacheRetryDelay time.Duration // Delay between silent retries

	// Dashboard
	ListLimit       int           // Cap for the "all complaints" list fetch
	TimelineDays    int           // Day window for the timeline panel
	RefreshInterval time.Duration // How often `serve` re-warms the overview
	LedgerFile      string        // CSV file recording generated responses

	// Telegram configuration (optional)
	TelegramBotToken string
	TelegramChatID   string

	// HTTP server
	HTTPPort string

	// Debug mode - notifications and mutations are logged instead of sent
	DebugMode bool
	LogLevel  string
}

// LoadConfig loads configuration from environment variables with defaults.
//
// Loading process:
//  1. Parse embedded .env file and set as fallback environment variables
//  2. Try to load external .env file (does not override real env vars)
//  3. Read environment variables, apply defaults for missing values
//  4. Validate
func LoadConfig() (*Config, error) {
	// Step 1: Embedded fallback
	envMap, err := godotenv.Unmarshal(embeddedEnv)
	if err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	// Step 2: External .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:   getEnvOrDefault("API_BASE_URL", "http://localhost:3003"),
		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxConns: getEnvInt("HTTP_MAX_CONNS", 100),
		APIRateLimit: getEnvFloat("API_RATE_LIMIT", 20),

		CacheStaleTime:  getEnvDuration("CACHE_STALE_TIME", 30*time.Second),
		CacheRetryCount: getEnvInt("CACHE_RETRY_COUNT", 1),
		CacheRetryDelay: getEnvDuration("CACHE_RETRY_DELAY", 500*time.Millisecond),

		ListLimit:       getEnvInt("LIST_LIMIT", 1000),
		TimelineDays:    getEnvInt("TIMELINE_DAYS", 30),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		LedgerFile:      getEnvOrDefault("LEDGER_FILE", "responses.csv"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		DebugMode: getEnvOrDefault("DEBUG_MODE", "false") == "true",
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and values are sensible.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.CacheRetryCount < 0 {
		return fmt.Errorf("CACHE_RETRY_COUNT cannot be negative, got %d", c.CacheRetryCount)
	}
	if c.ListLimit < 1 {
		return fmt.Errorf("LIST_LIMIT must be at least 1, got %d", c.ListLimit)
	}
	if c.TimelineDays < 1 {
		return fmt.Errorf("TIMELINE_DAYS must be at least 1, got %d", c.TimelineDays)
	}
	if c.APIRateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT cannot be negative, got %v", c.APIRateLimit)
	}
	return nil
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Helper functions for environment variable parsing

// getEnvOrDefault returns the environment variable value or a default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an integer or a default if not set/invalid
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default if not set/invalid.
//
// Accepts standard Go duration strings like "5s", "10m", "1h30m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
