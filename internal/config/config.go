package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServiceName identifies this service in logs and metrics
const ServiceName = "materna-sync"

// Config holds the application configuration
type Config struct {
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	DBUser      string
	DBPassword  string
	DBHost      string
	DBPort      string
	DBName      string

	Workers       int
	QueueSize     int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	RetryInterval time.Duration

	CleanupInterval time.Duration
	RetentionDays   int
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBName:      getEnv("DB_NAME", "maternar_sync"),
	}

	var err error
	if cfg.Port, err = getEnvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("SYNC_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getEnvInt("SYNC_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = getEnvInt("SYNC_MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.BackoffBase, err = getEnvDuration("SYNC_BACKOFF_BASE", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackoffMax, err = getEnvDuration("SYNC_BACKOFF_MAX", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryInterval, err = getEnvDuration("SYNC_RETRY_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getEnvDuration("SYNC_CLEANUP_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RetentionDays, err = getEnvInt("SYNC_RETENTION_DAYS", 30); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return v, nil
}

// GetDBConnString returns the PostgreSQL connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}
