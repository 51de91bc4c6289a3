// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreNATS     = "nats"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Storage
	StoreBackend  string
	DatabaseURL   string
	SQLitePath    string
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	// NATS settings. An empty URL disables NATS entirely.
	NATSURL           string
	NATSCAFile        string
	NATSCertFile      string
	NATSKeyFile       string
	NATSToken         string
	NATSEventsEnabled bool

	// JWT settings
	AuthRequired bool
	JWTSecret    string

	// LLM settings
	LLMProvider            string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	AnthropicAPIKey        string
	AnthropicModel         string
	CompletionTimeout      time.Duration
	MaxInflightCompletions int

	// Chat
	BrandName      string
	WSPingInterval time.Duration
	WSReadLimit    int64

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", nil),

		// Storage
		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "cocoa.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// NATS
		NATSURL:           getEnv("NATS_URL", ""),
		NATSCAFile:        getEnv("NATS_CA_FILE", ""),
		NATSCertFile:      getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:       getEnv("NATS_KEY_FILE", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSEventsEnabled: getBoolEnv("NATS_EVENTS_ENABLED", true),

		// JWT
		AuthRequired: getBoolEnv("AUTH_REQUIRED", false),
		JWTSecret:    getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// LLM
		LLMProvider:            strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:            getEnv("OPENAI_MODEL", "gpt-4o"),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:         getEnv("ANTHROPIC_MODEL", ""),
		CompletionTimeout:      getDurationEnv("COMPLETION_TIMEOUT", 30*time.Second),
		MaxInflightCompletions: getIntEnv("MAX_INFLIGHT_COMPLETIONS", 16),

		// Chat
		BrandName:      getEnv("BRAND_NAME", "Scrumpts"),
		WSPingInterval: getDurationEnv("WS_PING_INTERVAL", 30*time.Second),
		WSReadLimit:    int64(getIntEnv("WS_READ_LIMIT", 16*1024)),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
