// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level configuration for the trading sandbox API.
type Config struct {
	Port     int
	APIToken string

	DB         DBConfig
	MarketData MarketDataConfig
	Logging    LoggingConfig
}

// DBConfig holds postgres connection parameters.
type DBConfig struct {
	ConnStr  string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// MarketDataConfig holds the upstream provider endpoint and credential.
type MarketDataConfig struct {
	BaseURL   string
	AccessKey string
	Timeout   time.Duration
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// ConnString returns the lib/pq connection string, preferring the explicit
// DB_CONN_STR over individual parameters.
func (c DBConfig) ConnString() string {
	if c.ConnStr != "" {
		return c.ConnStr
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Load reads configuration from environment variables, picking up a local
// .env file when present.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     envInt("PORT", 8080),
		APIToken: envString("API_TOKEN", "dev-token"),
		DB: DBConfig{
			ConnStr:  os.Getenv("DB_CONN_STR"),
			Host:     envString("DB_HOST", "localhost"),
			Port:     envString("DB_PORT", "5432"),
			User:     envString("DB_USER", "postgres"),
			Password: envString("DB_PASSWORD", "postgres"),
			Name:     envString("DB_NAME", "tradingsandbox"),
		},
		MarketData: MarketDataConfig{
			BaseURL:   envString("MARKET_DATA_BASE_URL", "http://localhost:8000"),
			AccessKey: os.Getenv("MARKET_DATA_ACCESS_KEY"),
			Timeout:   envDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Pretty: envBool("LOG_PRETTY", false),
		},
	}

	if cfg.MarketData.AccessKey == "" {
		return nil, fmt.Errorf("MARKET_DATA_ACCESS_KEY is required")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
