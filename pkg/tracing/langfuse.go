package tracing

import (
	"context"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/memory"
)

// GenerationRecorder receives completed generations. *LangfuseTracer is the
// production implementation.
type GenerationRecorder interface {
	TraceGeneration(ctx context.Context, modelName string, input []llm.Message, response string, startTime, endTime time.Time, metadata map[string]interface{}) (string, error)
	TraceEvent(ctx context.Context, name string, input interface{}, output interface{}, level string, metadata map[string]interface{}) (string, error)
}

// LangfuseTracer implements tracing using Langfuse
type LangfuseTracer struct {
	client      *langfuse.Langfuse
	enabled     bool
	environment string
}

// LangfuseConfig contains configuration for Langfuse
type LangfuseConfig struct {
	// Enabled determines whether Langfuse tracing is enabled
	Enabled bool

	// SecretKey is the Langfuse secret key
	SecretKey string

	// PublicKey is the Langfuse public key
	PublicKey string

	// Host is the Langfuse host (optional)
	Host string

	// Environment is the environment name (e.g., "production", "staging")
	Environment string
}

// NewLangfuseTracer creates a new Langfuse tracer. The client reads its
// credentials from LANGFUSE_* variables, so configured values are exported
// when the variables are unset.
func NewLangfuseTracer(ctx context.Context, config LangfuseConfig) (*LangfuseTracer, error) {
	if !config.Enabled {
		return &LangfuseTracer{enabled: false}, nil
	}
	if config.PublicKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("langfuse public and secret keys are required")
	}

	for key, value := range map[string]string{
		"LANGFUSE_PUBLIC_KEY": config.PublicKey,
		"LANGFUSE_SECRET_KEY": config.SecretKey,
		"LANGFUSE_HOST":       config.Host,
	} {
		if value == "" {
			continue
		}
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return nil, fmt.Errorf("failed to export %s: %w", key, err)
			}
		}
	}

	return &LangfuseTracer{
		client:      langfuse.New(ctx),
		enabled:     true,
		environment: config.Environment,
	}, nil
}

// Enabled reports whether generations are sent
func (t *LangfuseTracer) Enabled() bool {
	return t != nil && t.enabled
}

func (t *LangfuseTracer) metadata(ctx context.Context, metadata map[string]interface{}) model.M {
	m := make(model.M, len(metadata)+2)
	for k, v := range metadata {
		m[k] = v
	}
	if id, ok := memory.GetConversationID(ctx); ok {
		m["conversation_id"] = id
	}
	m["environment"] = t.environment
	return m
}

// TraceGeneration traces an LLM generation
func (t *LangfuseTracer) TraceGeneration(ctx context.Context, modelName string, input []llm.Message, response string, startTime, endTime time.Time, metadata map[string]interface{}) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	turns := make([]model.M, 0, len(input))
	for _, msg := range input {
		turns = append(turns, model.M{"role": msg.Role, "content": msg.Content})
	}

	generation := &model.Generation{
		Name:      fmt.Sprintf("generation-%d", time.Now().UnixNano()),
		StartTime: &startTime,
		EndTime:   &endTime,
		Model:     modelName,
		Input:     turns,
		Output: model.M{
			"completion": response,
		},
		Metadata: t.metadata(ctx, metadata),
	}

	created, err := t.client.Generation(generation, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse generation: %w", err)
	}
	return created.ID, nil
}

// TraceEvent traces an event
func (t *LangfuseTracer) TraceEvent(ctx context.Context, name string, input interface{}, output interface{}, level string, metadata map[string]interface{}) (string, error) {
	if !t.Enabled() {
		return "", nil
	}

	event := &model.Event{
		Name:     name,
		Input:    input,
		Output:   output,
		Level:    model.ObservationLevel(strings.ToUpper(level)),
		Metadata: t.metadata(ctx, metadata),
	}

	created, err := t.client.Event(event, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Langfuse event: %w", err)
	}
	return created.ID, nil
}

// Flush sends buffered observations
func (t *LangfuseTracer) Flush(ctx context.Context) {
	if !t.Enabled() {
		return
	}
	t.client.Flush(ctx)
}

// ModelLangfuseMiddleware records each completed call as a Langfuse generation
type ModelLangfuseMiddleware struct {
	model    interfaces.ChatModel
	recorder GenerationRecorder
	logger   logging.Logger
}

// NewModelLangfuseMiddleware creates a new LLM middleware with Langfuse tracing
func NewModelLangfuseMiddleware(model interfaces.ChatModel, recorder GenerationRecorder, logger logging.Logger) *ModelLangfuseMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ModelLangfuseMiddleware{
		model:    model,
		recorder: recorder,
		logger:   logger,
	}
}

func (m *ModelLangfuseMiddleware) record(ctx context.Context, messages []llm.Message, response string, err error, start time.Time, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["provider"] = m.model.Name()

	if err == nil {
		if _, traceErr := m.recorder.TraceGeneration(ctx, modelName(m.model), messages, response, start, time.Now(), metadata); traceErr != nil {
			m.logger.Warn(ctx, "Failed to trace generation", map[string]interface{}{"error": traceErr.Error()})
		}
		return
	}

	metadata["error"] = err.Error()
	if _, traceErr := m.recorder.TraceEvent(ctx, "llm_error", len(messages), response, "error", metadata); traceErr != nil {
		m.logger.Warn(ctx, "Failed to trace error", map[string]interface{}{"error": traceErr.Error()})
	}
}

// Generate implements interfaces.ChatModel
func (m *ModelLangfuseMiddleware) Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	start := time.Now()
	response, err := m.model.Generate(ctx, messages, params)
	m.record(ctx, messages, response, err, start, nil)
	return response, err
}

// GenerateStream implements interfaces.ChatModel. The generation is recorded
// once, with the concatenated fragments, after the stream ends. Abandoned
// streams are recorded as partial.
func (m *ModelLangfuseMiddleware) GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		var sb strings.Builder
		var streamErr error
		partial := false
		defer func() {
			m.record(ctx, messages, sb.String(), streamErr, start, map[string]interface{}{
				"stream":  true,
				"partial": partial,
			})
		}()

		for fragment, err := range m.model.GenerateStream(ctx, messages, params) {
			if err != nil {
				streamErr = err
			} else {
				sb.WriteString(fragment)
			}
			if !yield(fragment, err) {
				partial = true
				return
			}
		}
	}
}

// IsAvailable implements interfaces.ChatModel
func (m *ModelLangfuseMiddleware) IsAvailable() bool {
	return m.model.IsAvailable()
}

// Name implements interfaces.ChatModel
func (m *ModelLangfuseMiddleware) Name() string {
	return m.model.Name()
}

// ModelName returns the wrapped model identifier
func (m *ModelLangfuseMiddleware) ModelName() string {
	return modelName(m.model)
}
