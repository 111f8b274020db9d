package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction      bool
	ProdOrigins       string
	HTTPAddr          string
	LogLevel          string
	DBDSN             string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	EventStream       string
	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BcryptCost        int

	OperatorEmail        string
	OperatorPasswordHash string

	LockTimeout         time.Duration
	NoShowSweepInterval time.Duration
	// ChannelPollInterval of zero disables background feed polling.
	ChannelPollInterval time.Duration
	ChannelTimeout      time.Duration

	PropertyFile string
	Property     *Property
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

	// Log level: debug, info, warn or error (default: info)
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	// Empty DSN runs the engine in memory only.
	cfg.DBDSN = os.Getenv("DB_DSN")

	// Empty address logs events instead of streaming them.
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.EventStream = getEnv("EVENT_STREAM", "pms:events")

	// JWT secret is required for signing tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_TTL: %w", err)
	}

	// Bcrypt cost for password hashing (default: 12)
	cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.OperatorEmail = os.Getenv("OPERATOR_EMAIL")
	cfg.OperatorPasswordHash = os.Getenv("OPERATOR_PASSWORD_HASH")

	if cfg.LockTimeout, err = getEnvAsDuration("LOCK_TIMEOUT", 2*time.Second); err != nil {
		return nil, fmt.Errorf("invalid LOCK_TIMEOUT: %w", err)
	}
	if cfg.NoShowSweepInterval, err = getEnvAsDuration("NO_SHOW_SWEEP_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid NO_SHOW_SWEEP_INTERVAL: %w", err)
	}
	if cfg.ChannelPollInterval, err = getEnvAsDuration("CHANNEL_POLL_INTERVAL", 0); err != nil {
		return nil, fmt.Errorf("invalid CHANNEL_POLL_INTERVAL: %w", err)
	}
	if cfg.ChannelTimeout, err = getEnvAsDuration("CHANNEL_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("invalid CHANNEL_TIMEOUT: %w", err)
	}

	cfg.PropertyFile = os.Getenv("PROPERTY_FILE")
	if cfg.PropertyFile != "" {
		cfg.Property, err = LoadProperty(cfg.PropertyFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg.Property = DefaultProperty()
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

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}
	if valStr == "0" {
		return 0, nil
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	return val, nil
}
