// Package config provides environment configuration for the session daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Reply backends.
const (
	ReplyProcessing = "processing"
	ReplyAnthropic  = "anthropic"
	ReplyOpenAI     = "openai"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// JWT settings
	JWTSecret string

	// Remote collaborators
	RecordStoreURL     string
	DocumentServiceURL string
	RemoteTimeout      time.Duration

	// Session hint
	RedisURL string
	HintTTL  time.Duration

	// NATS settings; an empty URL disables the notice journal
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Replies
	ReplyBackend    string
	LLMModel        string
	LLMBaseURL      string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Session containers
	UploadRemoveDelay time.Duration
	UploadErrorTTL    time.Duration
	SwitchMinDuration time.Duration
	MaxWorkspaces     int
	InboxSize         int

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

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
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Remote collaborators
		RecordStoreURL:     getEnv("RECORD_STORE_URL", "http://localhost:3000"),
		DocumentServiceURL: getEnv("DOCUMENT_SERVICE_URL", "http://localhost:8000"),
		RemoteTimeout:      getDurationEnv("REMOTE_TIMEOUT", 60*time.Second),

		// Session hint
		RedisURL: getEnv("REDIS_URL", ""),
		HintTTL:  getDurationEnv("HINT_TTL", 12*time.Hour),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Replies
		ReplyBackend:    strings.ToLower(getEnv("REPLY_BACKEND", ReplyProcessing)),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMBaseURL:      getEnv("LLM_BASE_URL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// Session containers
		UploadRemoveDelay: getDurationEnv("UPLOAD_REMOVE_DELAY", 1500*time.Millisecond),
		UploadErrorTTL:    getDurationEnv("UPLOAD_ERROR_TTL", 5*time.Second),
		SwitchMinDuration: getDurationEnv("SWITCH_MIN_DURATION", 500*time.Millisecond),
		MaxWorkspaces:     getIntEnv("MAX_WORKSPACES", 1024),
		InboxSize:         getIntEnv("INBOX_SIZE", 50),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.RecordStoreURL == "" {
		errs = append(errs, errors.New("RECORD_STORE_URL is required"))
	}
	if c.DocumentServiceURL == "" {
		errs = append(errs, errors.New("DOCUMENT_SERVICE_URL is required"))
	}
	switch c.ReplyBackend {
	case ReplyProcessing:
	case ReplyAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for REPLY_BACKEND=anthropic"))
		}
	case ReplyOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for REPLY_BACKEND=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REPLY_BACKEND %q", c.ReplyBackend))
	}
	if c.MaxWorkspaces <= 0 {
		errs = append(errs, errors.New("MAX_WORKSPACES must be positive"))
	}
	return errors.Join(errs...)
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
