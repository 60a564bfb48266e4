package vertex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/retry"
)

// Gemini model constants
const (
	ModelGemini25Flash = "gemini-2.5-flash"
	ModelGemini25Pro   = "gemini-2.5-pro"
	ModelGemini20Flash = "gemini-2.0-flash"
	ModelGemini15Flash = "gemini-1.5-flash"
)

// DefaultModel is the default Gemini model
const DefaultModel = ModelGemini25Flash

const providerName = "vertex"

// Client is a Gemini chat client on Vertex AI
type Client struct {
	client          *genai.Client
	model           string
	projectID       string
	location        string
	credentialsFile string
	apiKey          string
	logger          logging.Logger
	retryExecutor   *retry.Executor
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithModel sets the model for the client
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithLocation sets the location for the client
func WithLocation(location string) ClientOption {
	return func(c *Client) {
		c.location = location
	}
}

// WithCredentialsFile sets the path to the service account credentials file
func WithCredentialsFile(credentialsFile string) ClientOption {
	return func(c *Client) {
		c.credentialsFile = credentialsFile
	}
}

// WithAPIKey authenticates with an API key instead of application credentials
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry configures the retry policy for the client
func WithRetry(opts ...retry.Option) ClientOption {
	return func(c *Client) {
		c.retryExecutor = retry.NewExecutor(retry.NewPolicy(opts...))
	}
}

func newClient(projectID string, options ...ClientOption) *Client {
	client := &Client{
		model:         DefaultModel,
		projectID:     projectID,
		location:      "us-central1",
		logger:        logging.NewNop(),
		retryExecutor: retry.NewExecutor(retry.NewPolicy()),
	}

	for _, opt := range options {
		opt(client)
	}
	return client
}

// NewClient creates a new Vertex AI client
func NewClient(ctx context.Context, projectID string, options ...ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required: %w", llm.ErrNotConfigured)
	}

	client := newClient(projectID, options...)

	var clientOptions []option.ClientOption
	if client.credentialsFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(client.credentialsFile))
	}
	if client.apiKey != "" {
		clientOptions = append(clientOptions, option.WithAPIKey(client.apiKey))
	}

	vertexClient, err := genai.NewClient(ctx, projectID, client.location, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	client.client = vertexClient
	return client, nil
}

// Name returns the provider name
func (c *Client) Name() string {
	return providerName
}

// ModelName returns the configured model identifier
func (c *Client) ModelName() string {
	return c.model
}

// IsAvailable reports whether the underlying client was created
func (c *Client) IsAvailable() bool {
	return c.client != nil
}

func (c *Client) session(messages []llm.Message, params *llm.GenerateParams) (*genai.ChatSession, []genai.Part, error) {
	system, history, last, err := convertMessages(messages)
	if err != nil {
		return nil, nil, err
	}

	model := c.client.GenerativeModel(c.model)
	configureModel(model, system, params)

	cs := model.StartChat()
	cs.History = history
	return cs, last, nil
}

// Generate sends the conversation as a chat session and returns the reply
func (c *Client) Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	if !c.IsAvailable() {
		return "", llm.NewClientError(providerName, "generate", llm.ErrNotConfigured)
	}

	if _, _, _, err := convertMessages(messages); err != nil {
		return "", llm.NewClientError(providerName, "generate", err)
	}

	// a failed send leaves the user turn in the session history, so each
	// attempt starts a fresh session
	var response *genai.GenerateContentResponse
	err := c.retryExecutor.Execute(ctx, func() error {
		cs, last, err := c.session(messages, params)
		if err != nil {
			return retry.Permanent(err)
		}
		var genErr error
		response, genErr = cs.SendMessage(ctx, last...)
		if genErr != nil {
			c.logger.Warn(ctx, "Gemini request failed", map[string]interface{}{
				"error": genErr.Error(),
				"model": c.model,
			})
		}
		return genErr
	})
	if err != nil {
		return "", llm.NewClientError(providerName, "generate", fmt.Errorf("failed to generate content: %w", err))
	}

	text, err := responseText(response)
	if err != nil {
		return "", llm.NewClientError(providerName, "generate", err)
	}
	return text, nil
}

// GenerateStream streams the reply. Only the first chunk is retried.
func (c *Client) GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !c.IsAvailable() {
			yield("", llm.NewClientError(providerName, "stream", llm.ErrNotConfigured))
			return
		}

		if _, _, _, err := convertMessages(messages); err != nil {
			yield("", llm.NewClientError(providerName, "stream", err))
			return
		}

		var it *genai.GenerateContentResponseIterator
		var first *genai.GenerateContentResponse
		err := c.retryExecutor.Execute(ctx, func() error {
			cs, last, err := c.session(messages, params)
			if err != nil {
				return retry.Permanent(err)
			}
			it = cs.SendMessageStream(ctx, last...)
			var nextErr error
			first, nextErr = it.Next()
			if errors.Is(nextErr, iterator.Done) {
				return nil
			}
			return nextErr
		})
		if err != nil {
			yield("", llm.NewClientError(providerName, "stream", err))
			return
		}

		resp := first
		for resp != nil {
			if text := partsText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}

			resp, err = it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", llm.NewClientError(providerName, "stream", err))
				return
			}
		}
	}
}

// Close closes the Vertex AI client
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func configureModel(model *genai.GenerativeModel, system string, params *llm.GenerateParams) {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.SetTemperature(float32(params.Temperature))
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}
	if params.TopP > 0 {
		model.SetTopP(float32(params.TopP))
	}
	if len(params.StopSequences) > 0 {
		model.StopSequences = params.StopSequences
	}
}

// convertMessages splits a conversation into the system instruction, the
// prior turns and the parts of the final user turn.
func convertMessages(messages []llm.Message) (string, []*genai.Content, []genai.Part, error) {
	system, turns := llm.SplitSystem(messages)
	if len(turns) == 0 {
		return "", nil, nil, errors.New("conversation has no user turn")
	}

	lastTurn := turns[len(turns)-1]
	if lastTurn.Role != llm.RoleUser {
		return "", nil, nil, fmt.Errorf("last message must be from the user, got %s", lastTurn.Role)
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, msg := range turns[:len(turns)-1] {
		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			return "", nil, nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	return system, history, []genai.Part{genai.Text(lastTurn.Content)}, nil
}

func partsText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response: %w", llm.ErrEmptyResponse)
	}
	if resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response: %w", llm.ErrEmptyResponse)
	}
	return partsText(resp), nil
}
