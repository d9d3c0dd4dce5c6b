package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Store backends selectable with STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	LogLevel          string
	StoreBackend      string
	DataDir           string
	DBDSN             string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration

	BookingHorizonDays   int
	MaxTransitionRetries int
	StudioLocation       *time.Location

	DispatchWorkers   int
	DispatchQueueSize int
	DispatchTimeout   time.Duration

	KafkaBrokers           []string
	KafkaNotificationTopic string

	ShutdownTimeout time.Duration
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Record store backend (default: file under ./data)
	cfg.StoreBackend = getEnv("STORE_BACKEND", BackendFile)
	switch cfg.StoreBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		// Database DSN is required only when bookings live in Postgres
		cfg.DBDSN = os.Getenv("DB_DSN")
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required when STORE_BACKEND=%s", BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}
	cfg.DataDir = getEnv("DATA_DIR", "data")

	// JWT secret is required for verifying tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}

	if cfg.BookingHorizonDays, err = getEnvAsInt("BOOKING_HORIZON_DAYS", 365); err != nil {
		return nil, err
	}
	if cfg.BookingHorizonDays < 1 {
		return nil, fmt.Errorf("BOOKING_HORIZON_DAYS must be positive")
	}
	if cfg.MaxTransitionRetries, err = getEnvAsInt("MAX_TRANSITION_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.MaxTransitionRetries < 0 {
		return nil, fmt.Errorf("MAX_TRANSITION_RETRIES must not be negative")
	}

	tz := getEnv("STUDIO_TIMEZONE", "UTC")
	if cfg.StudioLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid STUDIO_TIMEZONE %q: %w", tz, err)
	}

	if cfg.DispatchWorkers, err = getEnvAsInt("DISPATCH_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.DispatchQueueSize, err = getEnvAsInt("DISPATCH_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = getEnvAsDuration("DISPATCH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	// Kafka is optional; without brokers notifications are only logged.
	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))
	cfg.KafkaNotificationTopic = getEnv("KAFKA_NOTIFICATION_TOPIC", "booking.notifications")

	if cfg.ShutdownTimeout, err = getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		// Return 0 and a wrapped error to provide context
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses values like "15m" or "1h".
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}

	return val, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
