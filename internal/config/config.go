package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// HTTP API
	HTTPPort int `env:"HTTP_PORT" default:"3000"`

	// Database
	DatabaseDriver string `env:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" default:"mangabot.db"`

	// Response cache (memory when REDIS_URL is empty)
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" default:"1h"`

	// Source fetching
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" default:"30s"`
	RateLimit    float64       `env:"RATE_LIMIT" default:"5"`
	RateBurst    int           `env:"RATE_BURST" default:"10"`
	Clients      []string      `env:"CLIENTS" default:"comick:en"`

	// Update polling
	PollInterval   time.Duration `env:"POLL_INTERVAL" default:"10m"`
	PollWorkers    int           `env:"POLL_WORKERS" default:"4"`
	PollMaxRetries int           `env:"POLL_MAX_RETRIES" default:"3"`

	// Admin authentication
	JWTSecret      string        `env:"JWT_SECRET"`
	AdminKeyHash   string        `env:"ADMIN_KEY_HASH"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" default:"1h"`

	// Delivery to the chat layer
	WebhookURL string `env:"WEBHOOK_URL"`

	// Export
	ExportBackend       string `env:"EXPORT_BACKEND" default:"telegraph"`
	TelegraphShortName  string `env:"TELEGRAPH_SHORT_NAME" default:"mangabot"`
	TelegraphAuthorName string `env:"TELEGRAPH_AUTHOR_NAME" default:"Manga Bot"`
	TelegraphAuthorURL  string `env:"TELEGRAPH_AUTHOR_URL"`
	S3Endpoint          string `env:"S3_ENDPOINT"`
	S3Region            string `env:"S3_REGION" default:"us-east-1"`
	S3Bucket            string `env:"S3_BUCKET"`
	S3AccessKey         string `env:"S3_ACCESS_KEY"`
	S3SecretKey         string `env:"S3_SECRET_KEY"`
	S3PublicURL         string `env:"S3_PUBLIC_URL"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env is fine, the process environment is used as is
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: .env file not loaded: %v\n", err)
	}

	config := &Config{}

	loaders := []func() error{
		func() error { return loadEnvString(&config.GoEnv, "GO_ENV", "development") },
		func() error { return loadEnvInt(&config.HTTPPort, "HTTP_PORT", 3000) },

		// Database
		func() error { return loadEnvString(&config.DatabaseDriver, "DATABASE_DRIVER", "sqlite") },
		func() error { return loadEnvString(&config.DatabaseURL, "DATABASE_URL", "mangabot.db") },

		// Cache
		func() error { return loadEnvString(&config.RedisURL, "REDIS_URL", "") },
		func() error { return loadEnvDuration(&config.CacheTTL, "CACHE_TTL", time.Hour) },

		// Fetching
		func() error { return loadEnvDuration(&config.FetchTimeout, "FETCH_TIMEOUT", 30*time.Second) },
		func() error { return loadEnvFloat(&config.RateLimit, "RATE_LIMIT", 5) },
		func() error { return loadEnvInt(&config.RateBurst, "RATE_BURST", 10) },
		func() error { return loadEnvStringSlice(&config.Clients, "CLIENTS", []string{"comick:en"}) },

		// Polling
		func() error { return loadEnvDuration(&config.PollInterval, "POLL_INTERVAL", 10*time.Minute) },
		func() error { return loadEnvInt(&config.PollWorkers, "POLL_WORKERS", 4) },
		func() error { return loadEnvInt(&config.PollMaxRetries, "POLL_MAX_RETRIES", 3) },

		// Authentication
		func() error { return loadEnvString(&config.JWTSecret, "JWT_SECRET", "") },
		func() error { return loadEnvString(&config.AdminKeyHash, "ADMIN_KEY_HASH", "") },
		func() error { return loadEnvDuration(&config.AccessTokenTTL, "ACCESS_TOKEN_TTL", time.Hour) },

		func() error { return loadEnvString(&config.WebhookURL, "WEBHOOK_URL", "") },

		// Export
		func() error { return loadEnvString(&config.ExportBackend, "EXPORT_BACKEND", "telegraph") },
		func() error { return loadEnvString(&config.TelegraphShortName, "TELEGRAPH_SHORT_NAME", "mangabot") },
		func() error { return loadEnvString(&config.TelegraphAuthorName, "TELEGRAPH_AUTHOR_NAME", "Manga Bot") },
		func() error { return loadEnvString(&config.TelegraphAuthorURL, "TELEGRAPH_AUTHOR_URL", "") },
		func() error { return loadEnvString(&config.S3Endpoint, "S3_ENDPOINT", "") },
		func() error { return loadEnvString(&config.S3Region, "S3_REGION", "us-east-1") },
		func() error { return loadEnvString(&config.S3Bucket, "S3_BUCKET", "") },
		func() error { return loadEnvString(&config.S3AccessKey, "S3_ACCESS_KEY", "") },
		func() error { return loadEnvString(&config.S3SecretKey, "S3_SECRET_KEY", "") },
		func() error { return loadEnvString(&config.S3PublicURL, "S3_PUBLIC_URL", "") },

		// Logging
		func() error { return loadEnvString(&config.LogLevel, "LOG_LEVEL", "info") },
		func() error { return loadEnvString(&config.LogFormat, "LOG_FORMAT", "json") },
	}
	for _, load := range loaders {
		if err := load(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	*target = (*target)[:0]
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*target = append(*target, v)
		}
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var problems []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		problems = append(problems, "HTTP_PORT must be between 1 and 65535")
	}

	validDrivers := []string{"sqlite", "postgres"}
	if !slices.Contains(validDrivers, c.DatabaseDriver) {
		problems = append(problems, fmt.Sprintf("DATABASE_DRIVER must be one of: %s", strings.Join(validDrivers, ", ")))
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if c.FetchTimeout <= 0 {
		problems = append(problems, "FETCH_TIMEOUT must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		problems = append(problems, "RATE_LIMIT and RATE_BURST must be positive")
	}
	if len(c.Clients) == 0 {
		problems = append(problems, "CLIENTS must name at least one source")
	}

	if c.PollInterval < time.Minute {
		problems = append(problems, "POLL_INTERVAL must be at least 1m")
	}
	if c.PollWorkers < 1 {
		problems = append(problems, "POLL_WORKERS must be at least 1")
	}
	if c.PollMaxRetries < 0 {
		problems = append(problems, "POLL_MAX_RETRIES must not be negative")
	}

	// the admin API is only enabled with a key hash, and then needs a real secret
	if c.AdminKeyHash != "" && len(c.JWTSecret) < 32 {
		problems = append(problems, "JWT_SECRET should be at least 32 characters long")
	}

	switch c.ExportBackend {
	case "telegraph":
	case "s3":
		if c.S3Bucket == "" || c.S3PublicURL == "" {
			problems = append(problems, "S3_BUCKET and S3_PUBLIC_URL are required for the s3 export backend")
		}
	default:
		problems = append(problems, "EXPORT_BACKEND must be one of: telegraph, s3")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		problems = append(problems, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// AdminEnabled reports whether the authenticated admin routes are served
func (c *Config) AdminEnabled() bool {
	return c.AdminKeyHash != ""
}
