package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

const providerName = "openai"

// OpenAIClient implements interfaces.ChatModel for OpenAI-compatible APIs
type OpenAIClient struct {
	Client        *openai.Client
	Model         string
	name          string
	apiKey        string
	baseURL       string
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the OpenAI client
type Option func(*OpenAIClient)

// WithModel sets the model for the OpenAI client
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.Model = model
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

// WithName sets the provider name reported by Name and in errors. Use it
// when the base URL points at another vendor's compatible endpoint.
func WithName(name string) Option {
	return func(c *OpenAIClient) {
		c.name = name
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *OpenAIClient) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	client := &OpenAIClient{
		Model:  openai.GPT4oMini,
		name:   providerName,
		apiKey: apiKey,
		logger: logging.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.Client = openai.NewClientWithConfig(config)

	return client
}

// Name implements interfaces.ChatModel
func (c *OpenAIClient) Name() string {
	return c.name
}

// ModelName returns the configured model identifier
func (c *OpenAIClient) ModelName() string {
	return c.Model
}

// IsAvailable reports whether an API key is set
func (c *OpenAIClient) IsAvailable() bool {
	return c.apiKey != "" && c.Client != nil
}

func (c *OpenAIClient) request(messages []llm.Message, params *llm.GenerateParams) openai.ChatCompletionRequest {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    chatMessages,
		Temperature: float32(params.Temperature),
		TopP:        float32(params.TopP),
		MaxTokens:   params.MaxTokens,
		Stop:        params.StopSequences,
	}
}

func (c *OpenAIClient) execute(ctx context.Context, operation func() error) error {
	if c.retryExecutor != nil {
		return c.retryExecutor.Execute(ctx, operation)
	}
	return operation()
}

// Generate sends the conversation to the chat completion endpoint
func (c *OpenAIClient) Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	if !c.IsAvailable() {
		return "", llm.NewClientError(c.name, "generate", llm.ErrNotConfigured)
	}

	req := c.request(messages, params)

	var resp openai.ChatCompletionResponse
	operation := func() error {
		c.logger.Debug(ctx, "Executing OpenAI API request", map[string]interface{}{
			"model":       c.Model,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
			"messages":    len(req.Messages),
		})

		var err error
		resp, err = c.Client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from OpenAI API", map[string]interface{}{
				"error": err.Error(),
				"model": c.Model,
			})
			return permanentIfClientFault(err)
		}
		return nil
	}

	if err := c.execute(ctx, operation); err != nil {
		return "", llm.NewClientError(c.name, "generate", err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.NewClientError(c.name, "generate", llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams completion deltas. Only opening the stream is retried.
func (c *OpenAIClient) GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !c.IsAvailable() {
			yield("", llm.NewClientError(c.name, "stream", llm.ErrNotConfigured))
			return
		}

		req := c.request(messages, params)
		req.Stream = true

		var stream *openai.ChatCompletionStream
		operation := func() error {
			s, err := c.Client.CreateChatCompletionStream(ctx, req)
			if err != nil {
				c.logger.Error(ctx, "Error opening OpenAI stream", map[string]interface{}{
					"error": err.Error(),
					"model": c.Model,
				})
				return permanentIfClientFault(err)
			}
			stream = s
			return nil
		}

		if err := c.execute(ctx, operation); err != nil {
			yield("", llm.NewClientError(c.name, "stream", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", llm.NewClientError(c.name, "stream", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !yield(delta, nil) {
					return
				}
			}
		}
	}
}

// permanentIfClientFault stops retries for 4xx responses other than 429
func permanentIfClientFault(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != 429 {
		return retry.Permanent(fmt.Errorf("failed to generate text: %w", err))
	}
	return fmt.Errorf("failed to generate text: %w", err)
}
