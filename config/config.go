package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	SERVICE_NAME                string
	SERVICE_VERSION             string
	ENVIRONMENT                 string
	OTEL_EXPORTER_OTLP_ENDPOINT string
	OTEL_RESOURCE_ATTRIBUTES    string
	LOG_LEVEL                   string
	METRIC_INTERVAL             time.Duration
	RUNTIME_METRICS             bool
	REQUESTS_METRIC             bool
	DEVELOPMENT_MODE            bool
	SERVER_PORT                 string
	CLOUDINARY_CLOUD            string
	CLOUDINARY_API_KEY          string
	CLOUDINARY_API_SECRET       string
	MYSQL_HOST                  string
	MYSQL_PORT                  string
	MYSQL_USER                  string
	MYSQL_PASSWORD              string
	MYSQL_DBNAME                string
	REDIS_ADDRESS               string
	REDIS_PASSWORD              string
	JWT_SECRET_KEY              string
	ADMIN_SESSION_TTL           time.Duration
	SMTP_HOST                   string
	SMTP_PORT                   int
	SMTP_USERNAME               string
	SMTP_PASSWORD               string
	SMTP_FROM                   string
	OUTBOX_INTERVAL             time.Duration
	OUTBOX_BATCH_SIZE           int
	OUTBOX_MAX_ATTEMPTS         int
	DEFAULT_DAILY_LIMIT         float64
	DEFAULT_MONTHLY_LIMIT       float64
	DEFAULT_SINGLE_LIMIT        float64
	SHUTDOWN_TIMEOUT            time.Duration
}

func LoadConfig() (*Config, error) {
	// Helper function to get environment variable with default value
	Env := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return defaultValue
	}

	// Helper function to parse Duration from environment variable
	Duration := func(key string, defaultValue time.Duration) time.Duration {
		if value := os.Getenv(key); value != "" {
			if duration, err := time.ParseDuration(value); err == nil {
				return duration
			}
		}
		return defaultValue
	}

	// Helper function to parse boolean from environment variable
	Bool := func(key string, defaultValue bool) bool {
		if value := os.Getenv(key); value != "" {
			if boolValue, err := strconv.ParseBool(value); err == nil {
				return boolValue
			}
		}
		return defaultValue
	}

	// Helper function to parse integer from environment variable
	Int := func(key string, defaultValue int) int {
		if value := os.Getenv(key); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		return defaultValue
	}

	// Helper function to parse float from environment variable
	Float := func(key string, defaultValue float64) float64 {
		if value := os.Getenv(key); value != "" {
			if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
				return floatValue
			}
		}
		return defaultValue
	}

	config := &Config{
		SERVICE_NAME:                Env("SERVICE_NAME", "remitquota"),
		SERVICE_VERSION:             Env("SERVICE_VERSION", "1.0.0"),
		ENVIRONMENT:                 Env("ENVIRONMENT", "production"),
		OTEL_EXPORTER_OTLP_ENDPOINT: Env("OTEL_EXPORTER_OTLP_ENDPOINT", "0.0.0.0:4317"),
		OTEL_RESOURCE_ATTRIBUTES:    Env("OTEL_RESOURCE_ATTRIBUTES", "service.name=remitquota,service.namespace=remittance-group,deployment.environment=production"),
		LOG_LEVEL:                   Env("LOG_LEVEL", "info"),
		METRIC_INTERVAL:             Duration("METRIC_INTERVAL", 15*time.Second),
		RUNTIME_METRICS:             Bool("RUNTIME_METRICS", true),
		REQUESTS_METRIC:             Bool("REQUESTS_METRIC", true),
		DEVELOPMENT_MODE:            Bool("DEVELOPMENT_MODE", false),
		SERVER_PORT:                 Env("SERVER_PORT", "3001"),
		CLOUDINARY_CLOUD:            Env("CLOUDINARY_CLOUD", ""),
		CLOUDINARY_API_KEY:          Env("CLOUDINARY_API_KEY", ""),
		CLOUDINARY_API_SECRET:       Env("CLOUDINARY_API_SECRET", ""),
		MYSQL_HOST:                  Env("MYSQL_HOST", "127.0.0.1"),
		MYSQL_PORT:                  Env("MYSQL_PORT", "3306"),
		MYSQL_USER:                  Env("MYSQL_USER", "root"),
		MYSQL_PASSWORD:              Env("MYSQL_PASSWORD", ""),
		MYSQL_DBNAME:                Env("MYSQL_DBNAME", "remittance"),
		REDIS_ADDRESS:               Env("REDIS_ADDRESS", "localhost:6379"),
		REDIS_PASSWORD:              Env("REDIS_PASSWORD", ""),
		JWT_SECRET_KEY:              Env("JWT_SECRET_KEY", ""),
		ADMIN_SESSION_TTL:           Duration("ADMIN_SESSION_TTL", 30*time.Minute),
		SMTP_HOST:                   Env("SMTP_HOST", "localhost"),
		SMTP_PORT:                   Int("SMTP_PORT", 587),
		SMTP_USERNAME:               Env("SMTP_USERNAME", ""),
		SMTP_PASSWORD:               Env("SMTP_PASSWORD", ""),
		SMTP_FROM:                   Env("SMTP_FROM", "no-reply@remitquota.local"),
		OUTBOX_INTERVAL:             Duration("OUTBOX_INTERVAL", 10*time.Second),
		OUTBOX_BATCH_SIZE:           Int("OUTBOX_BATCH_SIZE", 20),
		OUTBOX_MAX_ATTEMPTS:         Int("OUTBOX_MAX_ATTEMPTS", 5),
		DEFAULT_DAILY_LIMIT:         Float("DEFAULT_DAILY_LIMIT", 1_000_000),
		DEFAULT_MONTHLY_LIMIT:       Float("DEFAULT_MONTHLY_LIMIT", 10_000_000),
		DEFAULT_SINGLE_LIMIT:        Float("DEFAULT_SINGLE_LIMIT", 500_000),
		SHUTDOWN_TIMEOUT:            Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	return config, nil
}
