package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Maximum database connection pool size
	MaxDBConnections int

	// Resident cache capacity (entries)
	CacheCapacity int

	// Age past which an accessed entry is refreshed in the background
	CacheRefreshAfter time.Duration

	// Idle bound after which an untouched entry is dropped
	CacheExpireAfter time.Duration

	// Store-side TTL written with every profile upsert
	ProfileTTL time.Duration

	// Background worker pool sizing
	WorkerCount int
	WorkerQueue int

	// Enable debug logging
	Debug bool
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "profilecache.db"),
		ServerAddr:        getEnv("SERVER_ADDR", "localhost:8080"),
		MaxDBConnections:  getEnvInt("MAX_DB_CONNECTIONS", 2),
		CacheCapacity:     getEnvInt("CACHE_CAPACITY", 2500),
		CacheRefreshAfter: getEnvDuration("CACHE_REFRESH_AFTER", 5*time.Minute),
		CacheExpireAfter:  getEnvDuration("CACHE_EXPIRE_AFTER", 20*time.Minute),
		ProfileTTL:        getEnvDuration("PROFILE_TTL", 2*time.Hour),
		WorkerCount:       getEnvInt("WORKER_COUNT", 4),
		WorkerQueue:       getEnvInt("WORKER_QUEUE", 256),
		Debug:             getEnvBool("DEBUG", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if cfg.CacheRefreshAfter >= cfg.CacheExpireAfter {
		return nil, fmt.Errorf("CACHE_REFRESH_AFTER must be shorter than CACHE_EXPIRE_AFTER")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
