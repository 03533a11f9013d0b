// Package config loads the console configuration from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/capitalize-ai/support-console/internal/autoresponse"
	"github.com/capitalize-ai/support-console/internal/model"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "CONSOLE_CONFIG"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort        string        `mapstructure:"PORT"`
	ServerReadTimeout time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	SSEHeartbeat      time.Duration `mapstructure:"SSE_HEARTBEAT"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`

	// NATS settings
	NATSURL          string `mapstructure:"NATS_URL"`
	NATSCAFile       string `mapstructure:"NATS_CA_FILE"`
	NATSCertFile     string `mapstructure:"NATS_CERT_FILE"`
	NATSKeyFile      string `mapstructure:"NATS_KEY_FILE"`
	NATSToken        string `mapstructure:"NATS_TOKEN"`
	NATSPrefix       string `mapstructure:"NATS_PREFIX"`
	JetStreamEnabled bool   `mapstructure:"JETSTREAM_ENABLED"`
	EventBuffer      int    `mapstructure:"EVENT_BUFFER"`

	// Collaborator REST APIs
	BackendURL          string        `mapstructure:"BACKEND_URL"`
	CustomerURL         string        `mapstructure:"CUSTOMER_URL"`
	FulfillmentURL      string        `mapstructure:"FULFILLMENT_URL"`
	APIToken            string        `mapstructure:"API_TOKEN"`
	CollaboratorTimeout time.Duration `mapstructure:"COLLABORATOR_TIMEOUT"`
	HistoryTimeout      time.Duration `mapstructure:"HISTORY_TIMEOUT"`

	// Fulfillment status cache; memory when RedisAddr is empty
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	StatusCacheTTL time.Duration `mapstructure:"STATUS_CACHE_TTL"`

	// Auto-response settings
	AutoResponseEnabled  bool     `mapstructure:"AUTO_RESPONSE_ENABLED"`
	MinConfidence        float64  `mapstructure:"AUTO_RESPONSE_MIN_CONFIDENCE"`
	AutoSendThreshold    float64  `mapstructure:"AUTO_SEND_THRESHOLD"`
	AllowedIntents       []string `mapstructure:"AUTO_RESPONSE_INTENTS"`
	AssistantConcurrency int64    `mapstructure:"ASSISTANT_CONCURRENCY"`

	// Agent identity and API auth
	AgentToken string `mapstructure:"AGENT_TOKEN"`
	JWTSecret  string `mapstructure:"JWT_SECRET"`

	// LLM settings
	LLMProvider     string        `mapstructure:"LLM_PROVIDER"`
	LLMModel        string        `mapstructure:"LLM_MODEL"`
	LLMBaseURL      string        `mapstructure:"LLM_BASE_URL"`
	AnthropicAPIKey string        `mapstructure:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string        `mapstructure:"OPENAI_API_KEY"`
	PolishTimeout   time.Duration `mapstructure:"POLISH_TIMEOUT"`

	// Rate limiting
	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	// Logging
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	LogDevelopment bool   `mapstructure:"LOG_DEVELOPMENT"`

	// Tracing
	TracingEndpoint string `mapstructure:"TRACING_ENDPOINT"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
}

var defaults = map[string]any{
	"PORT":                "8080",
	"SERVER_READ_TIMEOUT": 30 * time.Second,
	"SHUTDOWN_TIMEOUT":    30 * time.Second,
	"SSE_HEARTBEAT":       30 * time.Second,
	"CORS_ORIGINS":        []string{},

	"NATS_URL":          "nats://localhost:4222",
	"NATS_CA_FILE":      "",
	"NATS_CERT_FILE":    "",
	"NATS_KEY_FILE":     "",
	"NATS_TOKEN":        "",
	"NATS_PREFIX":       "support",
	"JETSTREAM_ENABLED": false,
	"EVENT_BUFFER":      256,

	"BACKEND_URL":          "http://localhost:3000",
	"CUSTOMER_URL":         "",
	"FULFILLMENT_URL":      "",
	"API_TOKEN":            "",
	"COLLABORATOR_TIMEOUT": 10 * time.Second,
	"HISTORY_TIMEOUT":      5 * time.Second,

	"REDIS_ADDR":       "",
	"REDIS_PASSWORD":   "",
	"REDIS_DB":         0,
	"STATUS_CACHE_TTL": 10 * time.Minute,

	"AUTO_RESPONSE_ENABLED":        true,
	"AUTO_RESPONSE_MIN_CONFIDENCE": 0.85,
	"AUTO_SEND_THRESHOLD":          0.9,
	"AUTO_RESPONSE_INTENTS":        []string{},
	"ASSISTANT_CONCURRENCY":        4,

	"AGENT_TOKEN": "",
	"JWT_SECRET":  "development-secret-change-in-production",

	"LLM_PROVIDER":      "",
	"LLM_MODEL":         "",
	"LLM_BASE_URL":      "",
	"ANTHROPIC_API_KEY": "",
	"OPENAI_API_KEY":    "",
	"POLISH_TIMEOUT":    3 * time.Second,

	"RATE_LIMIT_REQUESTS": 120,
	"RATE_LIMIT_WINDOW":   time.Minute,

	"LOG_LEVEL":       "info",
	"LOG_DEVELOPMENT": false,

	"TRACING_ENDPOINT": "localhost:4318",
	"TRACING_ENABLED":  false,
}

// Load reads configuration from defaults, the file named by CONSOLE_CONFIG
// and environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Every key has a default, so AutomaticEnv sees all of them.
	v.AutomaticEnv()

	if path := v.GetString(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.AllowedIntents = splitList(cfg.AllowedIntents)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the console cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.BackendURL == "" {
		errs = append(errs, errors.New("BACKEND_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, errors.New("AUTO_RESPONSE_MIN_CONFIDENCE must be within [0,1]"))
	}
	if c.AutoSendThreshold < 0 || c.AutoSendThreshold > 1 {
		errs = append(errs, errors.New("AUTO_SEND_THRESHOLD must be within [0,1]"))
	}
	switch c.LLMProvider {
	case "", "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	return errors.Join(errs...)
}

// AutoResponse returns the generator settings.
func (c *Config) AutoResponse() autoresponse.Config {
	out := autoresponse.DefaultConfig()
	out.Enabled = c.AutoResponseEnabled
	out.MinConfidence = c.MinConfidence
	out.AutoSendThreshold = c.AutoSendThreshold
	if len(c.AllowedIntents) > 0 {
		out.AllowedIntents = out.AllowedIntents[:0:0]
		for _, name := range c.AllowedIntents {
			out.AllowedIntents = append(out.AllowedIntents, model.IntentType(name))
		}
	}
	return out
}

// LLMAPIKey returns the key of the configured provider.
func (c *Config) LLMAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// splitList accepts both list values from a file and comma-separated values
// from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
