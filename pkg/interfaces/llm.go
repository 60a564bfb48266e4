package interfaces

import (
	"context"
	"iter"

	"github.com/run-bigpig/healthchat/pkg/llm"
)

// ChatModel is a hosted chat-completion provider
type ChatModel interface {
	// Generate returns the full completion for the conversation
	Generate(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error)

	// GenerateStream yields completion fragments as the provider produces them.
	// An error ends the sequence. Stopping iteration releases the request.
	GenerateStream(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) iter.Seq2[string, error]

	// IsAvailable reports whether the client has what it needs to make calls
	IsAvailable() bool

	// Name returns the provider name
	Name() string
}

// ModelNamer is implemented by clients that know their model identifier
type ModelNamer interface {
	ModelName() string
}
