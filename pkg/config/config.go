// Package config loads process configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Provider names
const (
	ProviderGemini    = "gemini"
	ProviderVertex    = "vertex"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Transcript backends
const (
	TranscriptNone     = "none"
	TranscriptMemory   = "memory"
	TranscriptRedis    = "redis"
	TranscriptPostgres = "postgres"
)

// Config is the full process configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	LLM        LLMConfig        `yaml:"llm"`
	Safety     SafetyConfig     `yaml:"safety"`
	Chat       ChatConfig       `yaml:"chat"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Server     ServerConfig     `yaml:"server"`
}

// AppConfig holds process-level settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
}

// LLMConfig selects and parameterizes the model provider
type LLMConfig struct {
	Provider        string      `yaml:"provider"`
	Model           string      `yaml:"model"`
	Temperature     float64     `yaml:"temperature"`
	MaxTokens       int         `yaml:"max_tokens"`
	GeminiAPIKey    string      `yaml:"gemini_api_key"`
	OpenAIAPIKey    string      `yaml:"openai_api_key"`
	OpenAIBaseURL   string      `yaml:"openai_base_url"`
	AnthropicAPIKey string      `yaml:"anthropic_api_key"`
	ProjectID       string      `yaml:"project_id"`
	Location        string      `yaml:"location"`
	CredentialsFile string      `yaml:"credentials_file"`
	Retry           RetryConfig `yaml:"retry"`
}

// RetryConfig is the transport retry policy
type RetryConfig struct {
	MaxAttempts     int32         `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// SafetyConfig controls classification and guardrails
type SafetyConfig struct {
	Enabled            bool     `yaml:"enabled"`
	MaxInputLength     int      `yaml:"max_input_length"`
	// RedactPII and BlockedWords apply to outbound prompts and to Chat
	// answers. Streamed answers are forwarded unredacted.
	RedactPII          bool     `yaml:"redact_pii"`
	BlockedWords       []string `yaml:"blocked_words"`
	ResponseTokenLimit int      `yaml:"response_token_limit"`
}

// ChatConfig shapes each conversation session
type ChatConfig struct {
	MaxHistory int    `yaml:"max_history"`
	Tone       string `yaml:"tone"`
}

// TracingConfig enables the tracing middleware
type TracingConfig struct {
	OTelEnabled       bool   `yaml:"otel_enabled"`
	ServiceName       string `yaml:"service_name"`
	CollectorEndpoint string `yaml:"collector_endpoint"`
	LangfuseEnabled   bool   `yaml:"langfuse_enabled"`
	LangfusePublicKey string `yaml:"langfuse_public_key"`
	LangfuseSecretKey string `yaml:"langfuse_secret_key"`
	LangfuseHost      string `yaml:"langfuse_host"`
}

// TranscriptConfig selects where turns are mirrored
type TranscriptConfig struct {
	Backend       string        `yaml:"backend"`
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	DatabaseURL   string        `yaml:"database_url"`
	Table         string        `yaml:"table"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxSessions int    `yaml:"max_sessions"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "Health LLM Chatbot",
			Environment: "development",
			LogLevel:    "info",
		},
		LLM: LLMConfig{
			Provider:    ProviderGemini,
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
			MaxTokens:   500,
			Location:    "us-central1",
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 2 * time.Second,
				MaxInterval:     10 * time.Second,
			},
		},
		Safety: SafetyConfig{
			Enabled:        true,
			MaxInputLength: 1000,
		},
		Chat: ChatConfig{
			MaxHistory: 10,
			Tone:       "friendly",
		},
		Tracing: TracingConfig{
			ServiceName:  "healthchat",
			LangfuseHost: "https://cloud.langfuse.com",
		},
		Transcript: TranscriptConfig{
			Backend: TranscriptNone,
			TTL:     24 * time.Hour,
			Table:   "chat_messages",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: 1000,
		},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if !isValidFilePath(path) {
			return nil, fmt.Errorf("invalid config file path: %s", path)
		}

		data, err := os.ReadFile(path) // #nosec G304 - path is validated with isValidFilePath()
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv builds a configuration from defaults and the environment only
func LoadFromEnv() (*Config, error) {
	return Load("")
}

var (
	globalOnce sync.Once
	globalCfg  *Config
	globalErr  error
)

// Get returns the process-wide configuration, loading it on first call from
// the file named by HEALTHCHAT_CONFIG, if set.
func Get() (*Config, error) {
	globalOnce.Do(func() {
		globalCfg, globalErr = Load(os.Getenv("HEALTHCHAT_CONFIG"))
	})
	return globalCfg, globalErr
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}

	str("HEALTHCHAT_ENVIRONMENT", &cfg.App.Environment)
	str("HEALTHCHAT_LOG_LEVEL", &cfg.App.LogLevel)
	boolean("HEALTHCHAT_LOG_JSON", &cfg.App.LogJSON)

	str("HEALTHCHAT_PROVIDER", &cfg.LLM.Provider)
	str("HEALTHCHAT_MODEL", &cfg.LLM.Model)
	float("HEALTHCHAT_TEMPERATURE", &cfg.LLM.Temperature)
	integer("HEALTHCHAT_MAX_TOKENS", &cfg.LLM.MaxTokens)
	str("GEMINI_API_KEY", &cfg.LLM.GeminiAPIKey)
	str("OPENAI_API_KEY", &cfg.LLM.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.OpenAIBaseURL)
	str("ANTHROPIC_API_KEY", &cfg.LLM.AnthropicAPIKey)
	str("VERTEX_PROJECT_ID", &cfg.LLM.ProjectID)
	str("VERTEX_LOCATION", &cfg.LLM.Location)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.LLM.CredentialsFile)

	boolean("HEALTHCHAT_ENABLE_SAFETY_FILTER", &cfg.Safety.Enabled)
	boolean("HEALTHCHAT_REDACT_PII", &cfg.Safety.RedactPII)

	integer("HEALTHCHAT_MAX_HISTORY", &cfg.Chat.MaxHistory)
	str("HEALTHCHAT_TONE", &cfg.Chat.Tone)

	if v, ok := lookup("OTEL_COLLECTOR_ENDPOINT"); ok && v != "" {
		cfg.Tracing.CollectorEndpoint = v
		cfg.Tracing.OTelEnabled = true
	}
	str("LANGFUSE_PUBLIC_KEY", &cfg.Tracing.LangfusePublicKey)
	str("LANGFUSE_SECRET_KEY", &cfg.Tracing.LangfuseSecretKey)
	str("LANGFUSE_HOST", &cfg.Tracing.LangfuseHost)
	if cfg.Tracing.LangfusePublicKey != "" && cfg.Tracing.LangfuseSecretKey != "" {
		cfg.Tracing.LangfuseEnabled = true
	}

	str("HEALTHCHAT_TRANSCRIPT", &cfg.Transcript.Backend)
	str("REDIS_URL", &cfg.Transcript.RedisURL)
	str("DATABASE_URL", &cfg.Transcript.DatabaseURL)

	str("HEALTHCHAT_ADDR", &cfg.Server.Addr)
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var problems []string

	switch c.LLM.Provider {
	case ProviderGemini, ProviderVertex, ProviderOpenAI, ProviderAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, "llm temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		problems = append(problems, "llm max_tokens must be positive")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		problems = append(problems, "llm retry max_attempts must be at least 1")
	}
	if c.Chat.MaxHistory < 1 {
		problems = append(problems, "chat max_history must be at least 1")
	}
	switch strings.ToLower(c.Chat.Tone) {
	case "friendly", "professional", "simple":
	default:
		problems = append(problems, fmt.Sprintf("unknown chat tone %q", c.Chat.Tone))
	}
	if c.Safety.MaxInputLength <= 0 {
		problems = append(problems, "safety max_input_length must be positive")
	}
	switch c.Transcript.Backend {
	case TranscriptNone, TranscriptMemory:
	case TranscriptRedis:
		if c.Transcript.RedisURL == "" {
			problems = append(problems, "transcript redis_url is required for the redis backend")
		}
	case TranscriptPostgres:
		if c.Transcript.DatabaseURL == "" {
			problems = append(problems, "transcript database_url is required for the postgres backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown transcript backend %q", c.Transcript.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// HasAPIKey reports whether credentials for the selected provider are present
func (c *Config) HasAPIKey() bool {
	switch c.LLM.Provider {
	case ProviderGemini:
		// an API key reaches the Developer API; a project goes through Vertex
		return c.LLM.GeminiAPIKey != "" || c.LLM.ProjectID != ""
	case ProviderVertex:
		// credentials may come from the ambient ADC chain
		return c.LLM.ProjectID != ""
	case ProviderOpenAI:
		return c.LLM.OpenAIAPIKey != ""
	case ProviderAnthropic:
		return c.LLM.AnthropicAPIKey != ""
	}
	return false
}

func isValidFilePath(filePath string) bool {
	if filePath == "" {
		return false
	}

	cleanPath := filepath.Clean(filePath)
	if strings.Contains(cleanPath, "..") {
		return false
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return false
	}
	if strings.HasPrefix(absPath, "/proc") ||
		strings.HasPrefix(absPath, "/sys") ||
		strings.HasPrefix(absPath, "/dev") {
		return false
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return false
	}
	return fileInfo.Mode().IsRegular()
}
