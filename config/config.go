package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cfdjournal/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// HTTP
	HTTPAddr string

	// Database
	DBPath string

	// Quote refresh
	QuoteRefreshInterval time.Duration
	// Binance API keys. Optional: the quote endpoints used are public.
	BinanceAPIKey    string
	BinanceSecretKey string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	if cfg.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must be set")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/journal.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	refreshSeconds, err := getEnvAsIntRequired("QUOTE_REFRESH_INTERVAL_SECONDS", 300)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUOTE_REFRESH_INTERVAL_SECONDS: %v", err))
	} else if refreshSeconds <= 0 {
		errs = append(errs, "QUOTE_REFRESH_INTERVAL_SECONDS must be positive")
	}
	cfg.QuoteRefreshInterval = time.Duration(refreshSeconds) * time.Second

	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
