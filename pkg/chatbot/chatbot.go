// Package chatbot runs the safety-mediated conversation.
//
// Each turn is sanitized and classified before anything leaves the process.
// Emergency input is answered with a fixed script and never reaches the
// model. Everything else is composed with the bounded history, sent to the
// model, screened, and returned with the disclaimer for its risk level.
//
// A Chatbot owns its history and is meant for one caller at a time.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/guardrails"
	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/memory"
	"github.com/run-bigpig/healthchat/pkg/prompts"
	"github.com/run-bigpig/healthchat/pkg/safety"
	"github.com/run-bigpig/healthchat/pkg/textutil"
)

const (
	DefaultMaxHistory  = 10
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// User-visible replies for turns that produce no model answer
const (
	RephraseMessage          = "I didn't catch that. Could you please rephrase your question?"
	ConnectionFailureMessage = "I'm having trouble connecting to my brain right now. Please try again in a moment."
	UnexpectedErrorMessage   = "I encountered an unexpected error. Please try again."
	StreamInterruptedNote    = "\n\n*Error occurred: the response was interrupted. Please try again.*"
)

// ErrNoLLM is returned by New when no chat model is given
var ErrNoLLM = errors.New("chatbot requires an LLM")

// Chatbot is one conversation session
type Chatbot struct {
	id            string
	llm           interfaces.ChatModel
	prompts       *prompts.Manager
	filter        *safety.Filter
	safetyEnabled bool
	guardrails    interfaces.Guardrails
	transcript    interfaces.Memory
	logger        logging.Logger
	sanitizer     textutil.Sanitizer
	maxHistory    int
	temperature   float64
	maxTokens     int
	history       *memory.History
}

// Option represents an option for configuring a chatbot
type Option func(*Chatbot)

// WithLLM sets the chat model
func WithLLM(model interfaces.ChatModel) Option {
	return func(c *Chatbot) {
		c.llm = model
	}
}

// WithPromptManager sets the prompt composer
func WithPromptManager(manager *prompts.Manager) Option {
	return func(c *Chatbot) {
		c.prompts = manager
	}
}

// WithSafetyFilter sets the risk classifier
func WithSafetyFilter(filter *safety.Filter) Option {
	return func(c *Chatbot) {
		c.filter = filter
	}
}

// WithSafetyEnabled toggles the default classifier. It has no effect when
// WithSafetyFilter is also given.
func WithSafetyEnabled(enabled bool) Option {
	return func(c *Chatbot) {
		c.safetyEnabled = enabled
	}
}

// WithGuardrails sets text guardrails applied around the model call
func WithGuardrails(g interfaces.Guardrails) Option {
	return func(c *Chatbot) {
		c.guardrails = g
	}
}

// WithTranscript mirrors every recorded turn to mem
func WithTranscript(mem interfaces.Memory) Option {
	return func(c *Chatbot) {
		c.transcript = mem
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Chatbot) {
		c.logger = logger
	}
}

// WithSanitizer sets the input sanitizer
func WithSanitizer(s textutil.Sanitizer) Option {
	return func(c *Chatbot) {
		c.sanitizer = s
	}
}

// WithMaxHistory sets the number of exchanges kept; history holds twice as
// many messages.
func WithMaxHistory(n int) Option {
	return func(c *Chatbot) {
		c.maxHistory = n
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(c *Chatbot) {
		c.temperature = t
	}
}

// WithMaxTokens sets the response token budget
func WithMaxTokens(n int) Option {
	return func(c *Chatbot) {
		c.maxTokens = n
	}
}

// WithID sets the session ID used as the transcript conversation ID
func WithID(id string) Option {
	return func(c *Chatbot) {
		c.id = id
	}
}

// New creates a chatbot with the given options
func New(options ...Option) (*Chatbot, error) {
	c := &Chatbot{
		safetyEnabled: true,
		sanitizer:     textutil.NewSanitizer(textutil.DefaultMaxInputLength),
		maxHistory:    DefaultMaxHistory,
		temperature:   DefaultTemperature,
		maxTokens:     DefaultMaxTokens,
	}

	for _, option := range options {
		option(c)
	}

	if c.llm == nil {
		return nil, ErrNoLLM
	}
	if c.maxHistory <= 0 {
		c.maxHistory = DefaultMaxHistory
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.prompts == nil {
		c.prompts = prompts.NewManager()
	}
	if c.filter == nil {
		c.filter = safety.NewFilter(safety.WithEnabled(c.safetyEnabled), safety.WithLogger(c.logger))
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	c.history = memory.NewHistory(2 * c.maxHistory)

	c.logger.Info(context.Background(), "Chatbot initialized", map[string]interface{}{
		"session_id": c.id,
		"llm":        c.llm.Name(),
		"tone":       string(c.prompts.Tone()),
		"safety":     c.filter.Enabled(),
	})

	return c, nil
}

// NewFromConfig creates a chatbot configured from cfg. Later options win.
func NewFromConfig(cfg *config.Config, model interfaces.ChatModel, options ...Option) (*Chatbot, error) {
	tone, err := prompts.ParseTone(cfg.Chat.Tone)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLLM(model),
		WithPromptManager(prompts.NewManager(prompts.WithTone(tone))),
		WithSafetyEnabled(cfg.Safety.Enabled),
		WithSanitizer(textutil.NewSanitizer(cfg.Safety.MaxInputLength)),
		WithMaxHistory(cfg.Chat.MaxHistory),
		WithTemperature(cfg.LLM.Temperature),
		WithMaxTokens(cfg.LLM.MaxTokens),
	}

	c, err := New(append(base, options...)...)
	if err != nil {
		return nil, err
	}
	if c.guardrails == nil {
		if p := guardrails.FromConfig(cfg.Safety, c.logger); p != nil {
			c.guardrails = p
		}
	}
	return c, nil
}

// ID returns the session ID
func (c *Chatbot) ID() string {
	return c.id
}

// LLM returns the chat model
func (c *Chatbot) LLM() interfaces.ChatModel {
	return c.llm
}

// History returns a copy of the recorded turns, oldest first
func (c *Chatbot) History() []interfaces.Message {
	return c.history.Messages()
}

// ClearHistory discards all recorded turns. The transcript, if any, is
// cleared as well.
func (c *Chatbot) ClearHistory(ctx context.Context) {
	c.history.Clear()
	ctx = memory.WithConversationID(ctx, c.id)
	if c.transcript != nil {
		if err := c.transcript.Clear(ctx); err != nil {
			c.logger.Warn(ctx, "Failed to clear transcript", map[string]interface{}{"error": err.Error()})
		}
	}
	c.logger.Info(ctx, "Conversation history cleared", nil)
}

func (c *Chatbot) params() *llm.GenerateParams {
	p := llm.DefaultGenerateParams()
	p.Temperature = c.temperature
	p.MaxTokens = c.maxTokens
	return p
}

// compose builds the outbound messages. Guardrails see every non-system
// message; the classifier has already seen the unredacted input.
func (c *Chatbot) compose(ctx context.Context, input string) ([]llm.Message, error) {
	recorded := c.history.Messages()
	history := make([]llm.Message, 0, len(recorded))
	for _, m := range recorded {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	messages := c.prompts.FormatConversation(input, history)
	if c.guardrails == nil {
		return messages, nil
	}

	for i := range messages {
		if messages[i].Role == llm.RoleSystem {
			continue
		}
		processed, err := c.guardrails.ProcessInput(ctx, messages[i].Content)
		if err != nil {
			return nil, fmt.Errorf("input guardrails: %w", err)
		}
		messages[i].Content = processed
	}
	return messages, nil
}

func newMessage(role, content string, metadata map[string]interface{}) interfaces.Message {
	return interfaces.Message{
		ID:        uuid.NewString()[:8],
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
}

func riskMetadata(level safety.RiskLevel, flags safety.Flags) map[string]interface{} {
	return map[string]interface{}{
		"risk_level": level.String(),
		"flags":      flags.Strings(),
	}
}

// record appends a user/assistant exchange and mirrors it to the transcript
func (c *Chatbot) record(ctx context.Context, user, assistant string, metadata map[string]interface{}) {
	turns := []interfaces.Message{
		newMessage(llm.RoleUser, user, nil),
		newMessage(llm.RoleAssistant, assistant, metadata),
	}
	c.history.Append(turns...)

	if c.transcript == nil {
		return
	}
	for _, m := range turns {
		if err := c.transcript.AddMessage(ctx, m); err != nil {
			c.logger.Warn(ctx, "Failed to write transcript", map[string]interface{}{
				"error": err.Error(),
				"role":  m.Role,
			})
		}
	}
}

func preview(text string) string {
	return textutil.TruncateText(text, 50, "...")
}
