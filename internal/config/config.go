package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the transcription gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8000"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-3"`   // nova-3, nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en-US"` // Language code (en-US, es, fr, etc.)

	// Gemini summarization API configuration.
	// Optional: transcription still works without it, summaries report a
	// configuration error instead.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" default:""`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	// Session configuration
	MaxSessions         int `envconfig:"MAX_SESSIONS" default:"32"`         // Concurrent session cap
	LinkOpenTimeout     int `envconfig:"LINK_OPEN_TIMEOUT" default:"10"`    // Seconds to wait for the upstream link to open
	LinkCloseTimeout    int `envconfig:"LINK_CLOSE_TIMEOUT" default:"5"`    // Seconds to wait for link teardown before forcing disconnect
	QuietPeriodMs       int `envconfig:"QUIET_PERIOD_MS" default:"1000"`    // Delay after stop before auto-summarization fires
	ParseErrorTolerance int `envconfig:"PARSE_ERROR_TOLERANCE" default:"5"` // Malformed upstream events tolerated before escalating

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts for summarize calls
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	SummarizeTimeout           int `envconfig:"SUMMARIZE_TIMEOUT" default:"30"`             // Seconds per summarization request

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}

	return &cfg, nil
}

// GeminiConfigured reports whether a Gemini API key is present
func (c *Config) GeminiConfigured() bool {
	return c.GeminiAPIKey != ""
}
