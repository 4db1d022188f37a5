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

	DatabaseURL string

	// Cache backend: "redis", "dynamo", or "memory"
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Pipeline
	ProcessingTimeout  time.Duration
	ShuffleProbability float64
	WorkerCount        int

	// Vendor webhook authentication: JSON map of account id -> shared secret
	WebhookSecretsJSON string
	AdminJWTSecret     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	NotifyQueueURL      string
	CacheTable          string
	ArtifactBucket      string
	UseMemoryQueue      bool

	// Text analysis: "keyword" or "bedrock"
	AnalyzerBackend string
	BedrockModelID  string

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// Fallback recipient for trigger-activation notices
	AccountNotifyEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CacheBackend:  strings.ToLower(strings.TrimSpace(getEnv("CACHE_BACKEND", "memory"))),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ProcessingTimeout:  getEnvAsDuration("PROCESSING_TIMEOUT", 30*time.Second),
		ShuffleProbability: getEnvAsFloat("SHUFFLE_PROBABILITY", 0.1),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),

		WebhookSecretsJSON: getEnv("WEBHOOK_SECRETS_JSON", ""),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		NotifyQueueURL:      getEnv("NOTIFY_QUEUE_URL", ""),
		CacheTable:          getEnv("CACHE_TABLE", "dispatch-processing-cache"),
		ArtifactBucket:      getEnv("ARTIFACT_BUCKET", ""),
		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", false),

		AnalyzerBackend: strings.ToLower(strings.TrimSpace(getEnv("ANALYZER_BACKEND", "keyword"))),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Dispatch AI"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AccountNotifyEmail: getEnv("ACCOUNT_NOTIFY_EMAIL", ""),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
