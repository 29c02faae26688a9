// Package config loads application configuration from the environment, with
// an optional file for the runtime-tunable settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence selects the hierarchy store backend: memory or dynamodb.
	Persistence string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string

	// Event publishing
	EventBusName       string
	EventBridgeEnabled bool

	// Logging
	LogLevel string

	// Authentication
	JWTSecret       string
	AllowUserHeader bool

	// CORS
	AllowedOrigins []string

	// Push stream configuration
	SSEHeartbeatInterval  time.Duration
	MaxConnectionsPerUser int

	// Placement configuration
	CollisionPadding float64
	MaxPositionBatch int

	// Stats configuration
	StatsCacheTTL time.Duration

	// Tracing
	EnableTracing   bool
	TracingEndpoint string

	// RuntimeConfigPath points at the optional hot-reloadable settings file.
	// Empty disables the watcher.
	RuntimeConfigPath string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		Persistence:   getEnv("PERSISTENCE", "memory"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "dotspark")),

		EventBusName:       getEnv("EVENT_BUS_NAME", "dotspark-events"),
		EventBridgeEnabled: getEnvBool("EVENTBRIDGE_ENABLED", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		AllowUserHeader: getEnvBool("ALLOW_USER_HEADER", false),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		SSEHeartbeatInterval:  getEnvDuration("SSE_HEARTBEAT_INTERVAL", 30*time.Second),
		MaxConnectionsPerUser: getEnvInt("MAX_CONNECTIONS_PER_USER", 10),

		CollisionPadding: getEnvFloat("COLLISION_PADDING", 20),
		MaxPositionBatch: getEnvInt("MAX_POSITION_BATCH", 25),

		StatsCacheTTL: getEnvDuration("STATS_CACHE_TTL", 30*time.Second),

		EnableTracing:   getEnvBool("ENABLE_TRACING", false),
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4317"),

		RuntimeConfigPath: getEnv("RUNTIME_CONFIG_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present.
func (c *Config) Validate() error {
	switch c.Persistence {
	case "memory", "dynamodb":
	default:
		return fmt.Errorf("unknown persistence backend: %s", c.Persistence)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.AllowUserHeader {
			return fmt.Errorf("ALLOW_USER_HEADER must not be set in production")
		}
		if c.Persistence == "dynamodb" && c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EventBridgeEnabled && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when EventBridge is enabled")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable with a default
// value.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
