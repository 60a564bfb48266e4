// Package provider builds the configured chat model.
package provider

import (
	"context"
	"fmt"
	"iter"

	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/llm/anthropic"
	"github.com/run-bigpig/healthchat/pkg/llm/openai"
	"github.com/run-bigpig/healthchat/pkg/llm/vertex"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

// New returns the chat model selected by cfg.LLM.Provider.
//
// Missing credentials do not fail construction: the returned model reports
// IsAvailable() == false and every call fails with llm.ErrNotConfigured, so
// callers can still start and answer with the connection-failure message.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (interfaces.ChatModel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	retryOpts := retryOptions(cfg.LLM.Retry)

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithLogger(logger),
			openai.WithRetry(retryOpts...),
		}
		if cfg.LLM.Model != "" {
			opts = append(opts, openai.WithModel(cfg.LLM.Model))
		}
		if cfg.LLM.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.OpenAIBaseURL))
		}
		return openai.NewClient(cfg.LLM.OpenAIAPIKey, opts...), nil

	case config.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithLogger(logger),
			anthropic.WithRetry(retryOpts...),
		}
		if cfg.LLM.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.LLM.Model))
		}
		return anthropic.NewClient(cfg.LLM.AnthropicAPIKey, opts...), nil

	case config.ProviderGemini, config.ProviderVertex:
		if cfg.LLM.ProjectID == "" && cfg.LLM.Provider == config.ProviderGemini && cfg.LLM.GeminiAPIKey != "" {
			return geminiDeveloperAPI(cfg, logger, retryOpts), nil
		}
		if cfg.LLM.ProjectID == "" {
			logger.Warn(ctx, "No Vertex project or Gemini API key configured, model calls will fail", map[string]interface{}{
				"provider": cfg.LLM.Provider,
			})
			return Unavailable(cfg.LLM.Provider, cfg.LLM.Model), nil
		}

		opts := []vertex.ClientOption{
			vertex.WithLogger(logger),
			vertex.WithRetry(retryOpts...),
		}
		if cfg.LLM.Model != "" {
			opts = append(opts, vertex.WithModel(cfg.LLM.Model))
		}
		if cfg.LLM.Location != "" {
			opts = append(opts, vertex.WithLocation(cfg.LLM.Location))
		}
		if cfg.LLM.CredentialsFile != "" {
			opts = append(opts, vertex.WithCredentialsFile(cfg.LLM.CredentialsFile))
		}
		if cfg.LLM.GeminiAPIKey != "" {
			opts = append(opts, vertex.WithAPIKey(cfg.LLM.GeminiAPIKey))
		}
		client, err := vertex.NewClient(ctx, cfg.LLM.ProjectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model: %w", cfg.LLM.Provider, err)
		}
		return client, nil
	}

	return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrInvalidConfig, cfg.LLM.Provider)
}

// GeminiOpenAIBaseURL is the Gemini Developer API's OpenAI-compatible endpoint
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// geminiDeveloperAPI reaches Gemini with an API key alone, through the
// OpenAI-compatible endpoint. OpenAIBaseURL overrides the endpoint.
func geminiDeveloperAPI(cfg *config.Config, logger logging.Logger, retryOpts []retry.Option) interfaces.ChatModel {
	baseURL := GeminiOpenAIBaseURL
	if cfg.LLM.OpenAIBaseURL != "" {
		baseURL = cfg.LLM.OpenAIBaseURL
	}
	opts := []openai.Option{
		openai.WithName(config.ProviderGemini),
		openai.WithBaseURL(baseURL),
		openai.WithLogger(logger),
		openai.WithRetry(retryOpts...),
	}
	if cfg.LLM.Model != "" {
		opts = append(opts, openai.WithModel(cfg.LLM.Model))
	}
	return openai.NewClient(cfg.LLM.GeminiAPIKey, opts...)
}

func retryOptions(rc config.RetryConfig) []retry.Option {
	var opts []retry.Option
	if rc.MaxAttempts > 0 {
		opts = append(opts, retry.WithMaxAttempts(rc.MaxAttempts))
	}
	if rc.InitialInterval > 0 {
		opts = append(opts, retry.WithInitialInterval(rc.InitialInterval))
	}
	if rc.MaxInterval > 0 {
		opts = append(opts, retry.WithMaximumInterval(rc.MaxInterval))
	}
	return opts
}

// unavailable is a model with no credentials
type unavailable struct {
	name  string
	model string
}

// Unavailable returns a model that is never available
func Unavailable(name, model string) interfaces.ChatModel {
	return &unavailable{name: name, model: model}
}

func (u *unavailable) Name() string      { return u.name }
func (u *unavailable) ModelName() string { return u.model }
func (u *unavailable) IsAvailable() bool { return false }

func (u *unavailable) Generate(context.Context, []llm.Message, *llm.GenerateParams) (string, error) {
	return "", llm.NewClientError(u.name, "generate", llm.ErrNotConfigured)
}

func (u *unavailable) GenerateStream(context.Context, []llm.Message, *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", llm.NewClientError(u.name, "stream", llm.ErrNotConfigured))
	}
}
