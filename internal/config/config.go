// internal/config/config.go
// Centralized configuration management
// Loads from environment variables with sensible defaults

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all client configuration
type Config struct {
	Environment string

	// Backend API
	BackendURL     string
	AccessToken    string
	RequestTimeout time.Duration

	// Sync
	SyncInterval time.Duration

	// Local gateway for the UI layer
	GatewayPort    string
	AllowedOrigins []string

	// Local state
	FavoritesBackend string // "sqlite", "memory", "redis" or "postgres"
	FavoritesKey     string
	LocalDBPath      string
	RedisURL         string
	DatabaseURL      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8080"),
		AccessToken:    getEnv("ACCESS_TOKEN", ""),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", "15s"),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", "7s"),

		GatewayPort:    getEnv("GATEWAY_PORT", "8090"),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "http://localhost:3000")},

		FavoritesBackend: getEnv("FAVORITES_BACKEND", BackendSQLite),
		FavoritesKey:     getEnv("FAVORITES_KEY", "favorites"),
		LocalDBPath:      getEnv("LOCAL_DB_PATH", "kiekky-client.db"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("ACCESS_TOKEN is required")
	}

	parsed, err := url.Parse(c.BackendURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid backend URL: %q", c.BackendURL)
	}
	if c.IsProduction() && parsed.Scheme != "https" {
		return fmt.Errorf("backend URL must use https in production")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.SyncInterval < time.Second {
		return fmt.Errorf("sync interval must be at least 1s")
	}

	if port, err := strconv.Atoi(c.GatewayPort); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid gateway port: %s", c.GatewayPort)
	}

	if c.FavoritesKey == "" {
		return fmt.Errorf("favorites key is required")
	}

	switch c.FavoritesBackend {
	case BackendSQLite:
		if c.LocalDBPath == "" {
			return fmt.Errorf("LOCAL_DB_PATH is required for the sqlite favorites backend")
		}
	case BackendMemory:
		if !c.IsDevelopment() {
			return fmt.Errorf("memory favorites backend is only allowed in development")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis favorites backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres favorites backend")
		}
	default:
		return fmt.Errorf("invalid favorites backend: %s", c.FavoritesBackend)
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions

// getEnv gets a string value from environment with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration gets a duration value from environment with a default
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		// If parsing fails, try to parse the default
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
