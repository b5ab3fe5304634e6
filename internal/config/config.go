package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	UseMemoryStore bool

	// Staff auth. Verification only; token issuance is external.
	StaffJWTSecret string

	// CORS for the staff frontend. Empty disables the CORS middleware.
	CORSAllowedOrigins []string

	// Realtime fan-out. Empty RedisAddr keeps broadcasts instance-local.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Slot generation guardrails.
	MaxSlotRangeDays int

	// HTTP server timeouts.
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		UseMemoryStore:   getEnvAsBool("USE_MEMORY_STORE", false),
		StaffJWTSecret:     getEnv("STAFF_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisTLS:         getEnvAsBool("REDIS_TLS", false),
		MaxSlotRangeDays: getEnvAsInt("MAX_SLOT_RANGE_DAYS", 90),
		ReadTimeout:      getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:  getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 20*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma-separated environment variable, dropping
// empty items.
func getEnvAsSlice(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
