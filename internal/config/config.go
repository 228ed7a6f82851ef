package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Session lifecycle
	MaxConcurrentSessions int
	MaxSessionDuration    time.Duration
	SessionIdleTimeout    time.Duration
	EndedSessionGrace     time.Duration
	CleanupInterval       time.Duration
	EncryptionRequired    bool

	// Escalation
	AutoEscalationThreshold int
	TierSLAOverrides        map[int]time.Duration
	DefaultRegion           string

	// Message processing
	UseMemoryQueue bool
	WorkerCount    int

	// External services
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	AWSRegion           string
	AWSEndpointOverride string
	MessageQueueURL     string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxConcurrentSessions: getEnvAsInt("MAX_CONCURRENT_SESSIONS", 1000),
		MaxSessionDuration:    getEnvAsDuration("MAX_SESSION_DURATION", 4*time.Hour),
		SessionIdleTimeout:    getEnvAsDuration("SESSION_IDLE_TIMEOUT", time.Hour),
		EndedSessionGrace:     getEnvAsDuration("ENDED_SESSION_GRACE", 5*time.Minute),
		CleanupInterval:       getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		EncryptionRequired:    getEnvAsBool("ENCRYPTION_REQUIRED", true),

		AutoEscalationThreshold: getEnvAsInt("AUTO_ESCALATION_THRESHOLD", 3),
		TierSLAOverrides:        parseTierSLAs(getEnv("TIER_SLA_OVERRIDES", "")),
		DefaultRegion:           getEnv("DEFAULT_REGION", "US"),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 4),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		MessageQueueURL:     getEnv("MESSAGE_QUEUE_URL", ""),
	}
}

// parseTierSLAs parses "5=30s,4=1m" into per-tier SLA overrides.
func parseTierSLAs(raw string) map[int]time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	overrides := make(map[int]time.Duration)
	for _, part := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		tier, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || tier < 1 || tier > 5 {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(kv[1]))
		if err != nil || d <= 0 {
			continue
		}
		overrides[tier] = d
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
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
