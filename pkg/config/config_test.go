package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Health LLM Chatbot", cfg.App.Name)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.True(t, cfg.Safety.Enabled)
	assert.Equal(t, 1000, cfg.Safety.MaxInputLength)
	assert.Equal(t, 10, cfg.Chat.MaxHistory)
	assert.Equal(t, "friendly", cfg.Chat.Tone)
	assert.Equal(t, TranscriptNone, cfg.Transcript.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	applyEnv(cfg, mapLookup(map[string]string{
		"HEALTHCHAT_PROVIDER":             "openai",
		"HEALTHCHAT_MODEL":                "gpt-4o",
		"OPENAI_API_KEY":                  "sk-test",
		"HEALTHCHAT_ENABLE_SAFETY_FILTER": "false",
		"HEALTHCHAT_MAX_HISTORY":          "4",
		"HEALTHCHAT_TEMPERATURE":          "0.2",
		"HEALTHCHAT_TONE":                 "simple",
		"OTEL_COLLECTOR_ENDPOINT":         "localhost:4317",
		"LANGFUSE_PUBLIC_KEY":             "pk",
		"LANGFUSE_SECRET_KEY":             "sk",
		"HEALTHCHAT_MAX_TOKENS":           "not-a-number",
	}))

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAIAPIKey)
	assert.False(t, cfg.Safety.Enabled)
	assert.Equal(t, 4, cfg.Chat.MaxHistory)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, "simple", cfg.Chat.Tone)
	assert.True(t, cfg.Tracing.OTelEnabled)
	assert.True(t, cfg.Tracing.LangfuseEnabled)
	// unparsable values leave the default in place
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.True(t, cfg.HasAPIKey())
}

// clearEnv blanks every variable applyEnv reads so the host environment
// cannot leak into file-based assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HEALTHCHAT_ENVIRONMENT", "HEALTHCHAT_LOG_LEVEL", "HEALTHCHAT_LOG_JSON",
		"HEALTHCHAT_PROVIDER", "HEALTHCHAT_MODEL", "HEALTHCHAT_TEMPERATURE", "HEALTHCHAT_MAX_TOKENS",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "ANTHROPIC_API_KEY",
		"VERTEX_PROJECT_ID", "VERTEX_LOCATION", "GOOGLE_APPLICATION_CREDENTIALS",
		"HEALTHCHAT_ENABLE_SAFETY_FILTER", "HEALTHCHAT_REDACT_PII",
		"HEALTHCHAT_MAX_HISTORY", "HEALTHCHAT_TONE",
		"OTEL_COLLECTOR_ENDPOINT", "LANGFUSE_PUBLIC_KEY", "LANGFUSE_SECRET_KEY", "LANGFUSE_HOST",
		"HEALTHCHAT_TRANSCRIPT", "REDIS_URL", "DATABASE_URL", "HEALTHCHAT_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_HEALTHCHAT_KEY", "from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "healthchat.yaml")
	content := `
app:
  log_level: debug
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  anthropic_api_key: ${TEST_HEALTHCHAT_KEY}
  retry:
    max_attempts: 5
    initial_interval: 1s
safety:
  blocked_words: [foo, bar]
  max_response_length: 1000
transcript:
  backend: redis
  redis_url: redis://localhost:6379/0
  ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "from-env", cfg.LLM.AnthropicAPIKey)
	assert.Equal(t, int32(5), cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.LLM.Retry.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.LLM.Retry.MaxInterval)
	assert.Equal(t, []string{"foo", "bar"}, cfg.Safety.BlockedWords)
	assert.Equal(t, time.Hour, cfg.Transcript.TTL)
	// untouched sections keep defaults
	assert.Equal(t, 10, cfg.Chat.MaxHistory)
}

func TestLoadRejectsBadPaths(t *testing.T) {
	_, err := Load("../etc/passwd")
	assert.Error(t, err)

	_, err = Load("/proc/self/status")
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.LLM.Provider = "llama" }},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
		{"attempts", func(c *Config) { c.LLM.Retry.MaxAttempts = 0 }},
		{"history", func(c *Config) { c.Chat.MaxHistory = 0 }},
		{"tone", func(c *Config) { c.Chat.Tone = "grumpy" }},
		{"input length", func(c *Config) { c.Safety.MaxInputLength = -1 }},
		{"redis url", func(c *Config) { c.Transcript.Backend = TranscriptRedis }},
		{"database url", func(c *Config) { c.Transcript.Backend = TranscriptPostgres }},
		{"backend", func(c *Config) { c.Transcript.Backend = "s3" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestHasAPIKey(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.HasAPIKey())

	cfg.LLM.ProjectID = "my-project"
	assert.True(t, cfg.HasAPIKey())

	cfg.LLM.Provider = ProviderVertex
	cfg.LLM.ProjectID = ""
	cfg.LLM.GeminiAPIKey = "AIza-test"
	assert.False(t, cfg.HasAPIKey())

	cfg.LLM.Provider = ProviderGemini
	assert.True(t, cfg.HasAPIKey())

	cfg.LLM.Provider = ProviderAnthropic
	assert.False(t, cfg.HasAPIKey())
	cfg.LLM.AnthropicAPIKey = "key"
	assert.True(t, cfg.HasAPIKey())
}
