package tracing

import (
	"context"
	"fmt"
	"iter"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm"
)

// ModelOTelMiddleware wraps a chat model with OpenTelemetry spans
type ModelOTelMiddleware struct {
	model  interfaces.ChatModel
	tracer *OTelTracer
}

// NewModelOTelMiddleware creates a new ModelOTelMiddleware
func NewModelOTelMiddleware(model interfaces.ChatModel, tracer *OTelTracer) *ModelOTelMiddleware {
	return &ModelOTelMiddleware{
		model:  model,
		tracer: tracer,
	}
}

func (m *ModelOTelMiddleware) attributes(messages []llm.Message) map[string]string {
	return map[string]string{
		"llm.provider":   m.model.Name(),
		"llm.model":      modelName(m.model),
		"messages.count": strconv.Itoa(len(messages)),
	}
}

// Generate implements interfaces.ChatModel
func (m *ModelOTelMiddleware) Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	ctx, span := m.tracer.StartSpan(ctx, "llm.generate", m.attributes(messages))

	response, err := m.model.Generate(ctx, messages, params)
	if err == nil {
		span.SetAttributes(attribute.Int("response.length", len(response)))
	}
	m.tracer.EndSpan(span, err)

	return response, err
}

// GenerateStream implements interfaces.ChatModel. The span covers the whole
// iteration and ends when the consumer stops.
func (m *ModelOTelMiddleware) GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := m.tracer.StartSpan(ctx, "llm.generate_stream", m.attributes(messages))

		var streamErr error
		fragments, length := 0, 0
		abandoned := false
		defer func() {
			span.SetAttributes(
				attribute.Int("stream.fragments", fragments),
				attribute.Int("response.length", length),
				attribute.Bool("stream.abandoned", abandoned),
			)
			m.tracer.EndSpan(span, streamErr)
		}()

		for fragment, err := range m.model.GenerateStream(ctx, messages, params) {
			if err != nil {
				streamErr = err
			} else {
				fragments++
				length += len(fragment)
			}
			if !yield(fragment, err) {
				abandoned = true
				return
			}
		}
	}
}

// IsAvailable implements interfaces.ChatModel
func (m *ModelOTelMiddleware) IsAvailable() bool {
	return m.model.IsAvailable()
}

// Name implements interfaces.ChatModel
func (m *ModelOTelMiddleware) Name() string {
	return m.model.Name()
}

// ModelName returns the wrapped model identifier
func (m *ModelOTelMiddleware) ModelName() string {
	return modelName(m.model)
}

// MemoryOTelMiddleware implements middleware for memory operations with OpenTelemetry tracing
type MemoryOTelMiddleware struct {
	memory interfaces.Memory
	tracer *OTelTracer
}

// NewMemoryOTelMiddleware creates a new memory middleware with OpenTelemetry tracing
func NewMemoryOTelMiddleware(memory interfaces.Memory, tracer *OTelTracer) *MemoryOTelMiddleware {
	return &MemoryOTelMiddleware{
		memory: memory,
		tracer: tracer,
	}
}

// AddMessage adds a message to memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) AddMessage(ctx context.Context, message interfaces.Message) error {
	attributes := map[string]string{
		"message.role":    message.Role,
		"message.content": fmt.Sprintf("%d bytes", len(message.Content)),
	}

	ctx, span := m.tracer.StartSpan(ctx, "memory.add_message", attributes)
	err := m.memory.AddMessage(ctx, message)
	m.tracer.EndSpan(span, err)

	return err
}

// GetMessages gets messages from memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) GetMessages(ctx context.Context, options ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	ctx, span := m.tracer.StartSpan(ctx, "memory.get_messages", nil)

	messages, err := m.memory.GetMessages(ctx, options...)
	if err == nil {
		span.SetAttributes(attribute.Int("messages.count", len(messages)))
	}
	m.tracer.EndSpan(span, err)

	return messages, err
}

// Clear clears memory with OpenTelemetry tracing
func (m *MemoryOTelMiddleware) Clear(ctx context.Context) error {
	ctx, span := m.tracer.StartSpan(ctx, "memory.clear", nil)
	err := m.memory.Clear(ctx)
	m.tracer.EndSpan(span, err)

	return err
}

func modelName(model interfaces.ChatModel) string {
	if namer, ok := model.(interfaces.ModelNamer); ok {
		return namer.ModelName()
	}
	return "unknown"
}
