// Package config provides configuration management for the gallery router service.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - TLS_CERT / TLS_KEY: Optional TLS certificate and key paths
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./gallery_router.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Gallery API (taxonomy provider):
//   - GALLERY_API_URL: Base URL of the remote gallery API (required)
//   - GALLERY_API_TOKEN: Credential token for the gallery API
//   - GALLERY_API_SCOPE: Website property id used as the credential scope
//   - GALLERY_API_TIMEOUT: HTTP timeout for taxonomy fetches (default: 10s)
//
// Routing and Caching:
//   - GALLERY_EMBED_MARKER: Content marker identifying gallery pages (default: [case-gallery])
//   - RESOLUTION_CACHE_TTL: TTL for slug resolution entries (default: 12h)
//   - CONTENT_SCAN_TTL: TTL for the content-scan page cache (default: 1h)
//   - FLUSH_SCHEDULE: Cron spec for the periodic flush pass (default: @every 10m)
//
// Security Configuration:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//   - ADMIN_PASSWORD: Bootstrap admin password, hashed into settings on first start
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the gallery router service.
// All fields correspond to environment variables that can be set to
// override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)
	TLSCert  string // Optional TLS certificate path
	TLSKey   string // Optional TLS key path

	// Database configuration
	DatabaseType     string // Database type: "sqlite" or "postgres"
	DatabasePath     string // Path to SQLite database file
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode (disable, require, etc.)

	// Redis configuration for the shared cache and table publication
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// Gallery API configuration
	APIBaseURL string        // Remote gallery API base URL
	APIToken   string        // Credential token for the gallery API
	APIScope   string        // Website property id (credential scope)
	APITimeout time.Duration // HTTP timeout for taxonomy fetches

	// Routing and caching
	EmbedMarker       string        // Content marker identifying gallery pages
	ResolutionTTL     time.Duration // TTL for slug resolution cache entries
	ContentScanTTL    time.Duration // TTL for the content-scan page cache
	FlushSchedule     string        // Cron spec for the periodic flush pass

	// Security
	JWTSecret     string // Secret key for JWT token signing (required)
	AdminPassword string // Bootstrap admin password (optional, hashed on first start)
}

// Load creates a new Config instance with values loaded from environment variables.
// If an environment variable is not set, the corresponding default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TLSCert:  getEnv("TLS_CERT", ""),
		TLSKey:   getEnv("TLS_KEY", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./gallery_router.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "gallery_router"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		APIBaseURL: getEnv("GALLERY_API_URL", ""),
		APIToken:   getEnv("GALLERY_API_TOKEN", ""),
		APIScope:   getEnv("GALLERY_API_SCOPE", ""),
		APITimeout: getDurationEnv("GALLERY_API_TIMEOUT", 10*time.Second),

		EmbedMarker:    getEnv("GALLERY_EMBED_MARKER", "[case-gallery]"),
		ResolutionTTL:  getDurationEnv("RESOLUTION_CACHE_TTL", 12*time.Hour),
		ContentScanTTL: getDurationEnv("CONTENT_SCAN_TTL", time.Hour),
		FlushSchedule:  getEnv("FLUSH_SCHEDULE", "@every 10m"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable or returns a default value.
// Invalid durations fall back to the default.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs comprehensive validation on the configuration to ensure
// all required fields are present and all values are valid.
//
// This method checks:
//   - Required fields (JWT_SECRET, GALLERY_API_URL)
//   - Field format validation (ports, durations)
//   - Cross-field dependencies (PostgreSQL configuration requirements)
//   - Security requirements (key lengths)
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("GALLERY_API_URL environment variable is required")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.ResolutionTTL <= 0 {
		return fmt.Errorf("RESOLUTION_CACHE_TTL must be a positive duration")
	}

	if c.ContentScanTTL <= 0 {
		return fmt.Errorf("CONTENT_SCAN_TTL must be a positive duration")
	}

	return nil
}
