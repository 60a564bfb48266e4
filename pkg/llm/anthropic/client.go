package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

const (
	providerName = "anthropic"
	apiVersion   = "2023-06-01"
)

// Model constants for supported Anthropic models
const (
	Claude35Haiku  = "claude-3-5-haiku-latest"
	Claude37Sonnet = "claude-3-7-sonnet-latest"
	ClaudeSonnet4  = "claude-sonnet-4-0"
)

// AnthropicClient implements interfaces.ChatModel over the Messages API
type AnthropicClient struct {
	APIKey        string
	Model         string
	BaseURL       string
	HTTPClient    *http.Client
	logger        logging.Logger
	retryExecutor *retry.Executor
}

// Option represents an option for configuring the Anthropic client
type Option func(*AnthropicClient)

// WithModel sets the model for the Anthropic client
func WithModel(model string) Option {
	return func(c *AnthropicClient) {
		c.Model = model
	}
}

// WithLogger sets the logger for the Anthropic client
func WithLogger(logger logging.Logger) Option {
	return func(c *AnthropicClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *AnthropicClient) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

// WithBaseURL sets the base URL for the Anthropic API
func WithBaseURL(baseURL string) Option {
	return func(c *AnthropicClient) {
		c.BaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the Anthropic client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *AnthropicClient) {
		c.HTTPClient = httpClient
	}
}

// NewClient creates a new Anthropic client
func NewClient(apiKey string, options ...Option) *AnthropicClient {
	client := &AnthropicClient{
		APIKey:     apiKey,
		Model:      Claude35Haiku,
		BaseURL:    "https://api.anthropic.com",
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// Message represents a message for Anthropic API
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest represents a request for Anthropic API
type CompletionRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	System        string    `json:"system,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

// ContentBlock represents a content block in Anthropic API response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CompletionResponse represents a response from Anthropic API
type CompletionResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent is the data payload of one server-sent event
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusError is a non-200 answer from the API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error from Anthropic API: status %d: %s", e.StatusCode, e.Body)
}

// Name implements interfaces.ChatModel
func (c *AnthropicClient) Name() string {
	return providerName
}

// ModelName returns the configured model identifier
func (c *AnthropicClient) ModelName() string {
	return c.Model
}

// IsAvailable reports whether an API key and model are set
func (c *AnthropicClient) IsAvailable() bool {
	return c.APIKey != "" && c.Model != ""
}

func (c *AnthropicClient) request(messages []llm.Message, params *llm.GenerateParams, stream bool) CompletionRequest {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	system, turns := llm.SplitSystem(messages)
	anthropicMessages := make([]Message, 0, len(turns))
	for _, msg := range turns {
		anthropicMessages = append(anthropicMessages, Message{Role: msg.Role, Content: msg.Content})
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return CompletionRequest{
		Model:         c.Model,
		Messages:      anthropicMessages,
		MaxTokens:     maxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		StopSequences: params.StopSequences,
		System:        system,
		Stream:        stream,
	}
}

func (c *AnthropicClient) execute(ctx context.Context, operation func() error) error {
	if c.retryExecutor != nil {
		return c.retryExecutor.Execute(ctx, operation)
	}
	return operation()
}

// send posts req and returns the response once the status is 200
func (c *AnthropicClient) send(ctx context.Context, req CompletionRequest) (*http.Response, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.APIKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		c.logger.Error(ctx, "Error from Anthropic API", map[string]interface{}{
			"error": err.Error(),
			"model": c.Model,
		})
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		c.closeBody(ctx, httpResp)
		c.logger.Error(ctx, "Error from Anthropic API", map[string]interface{}{
			"status_code": httpResp.StatusCode,
			"model":       c.Model,
		})
		statusErr := &StatusError{StatusCode: httpResp.StatusCode, Body: string(body)}
		if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	return httpResp, nil
}

func (c *AnthropicClient) closeBody(ctx context.Context, resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{
			"error": closeErr.Error(),
		})
	}
}

// Generate sends the conversation to the Messages API
func (c *AnthropicClient) Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	if !c.IsAvailable() {
		return "", llm.NewClientError(providerName, "generate", llm.ErrNotConfigured)
	}

	req := c.request(messages, params, false)

	var resp CompletionResponse
	operation := func() error {
		c.logger.Debug(ctx, "Executing Anthropic Messages API request", map[string]interface{}{
			"model":       c.Model,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
			"messages":    len(req.Messages),
		})

		httpResp, err := c.send(ctx, req)
		if err != nil {
			return err
		}
		defer c.closeBody(ctx, httpResp)

		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return nil
	}

	if err := c.execute(ctx, operation); err != nil {
		return "", llm.NewClientError(providerName, "generate", err)
	}

	var contentText []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			contentText = append(contentText, block.Text)
		}
	}
	if len(contentText) == 0 {
		return "", llm.NewClientError(providerName, "generate", llm.ErrEmptyResponse)
	}

	return strings.Join(contentText, "\n"), nil
}

// GenerateStream streams text deltas from the Messages API. Only the request
// itself is retried.
func (c *AnthropicClient) GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !c.IsAvailable() {
			yield("", llm.NewClientError(providerName, "stream", llm.ErrNotConfigured))
			return
		}

		req := c.request(messages, params, true)

		var httpResp *http.Response
		err := c.execute(ctx, func() error {
			var err error
			httpResp, err = c.send(ctx, req)
			return err
		})
		if err != nil {
			yield("", llm.NewClientError(providerName, "stream", err))
			return
		}
		defer c.closeBody(ctx, httpResp)

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &event); err != nil {
				yield("", llm.NewClientError(providerName, "stream", fmt.Errorf("failed to decode event: %w", err)))
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !yield(event.Delta.Text, nil) {
						return
					}
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Type + ": " + event.Error.Message
				}
				yield("", llm.NewClientError(providerName, "stream", errors.New(msg)))
				return
			case "message_stop":
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", llm.NewClientError(providerName, "stream", fmt.Errorf("failed to read stream: %w", err)))
		}
	}
}
