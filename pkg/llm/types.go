package llm

// Roles used in chat messages
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in a chat conversation
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// GenerateParams contains parameters for text generation
type GenerateParams struct {
	Temperature   float64  // Controls randomness (0.0 to 1.0)
	MaxTokens     int      // Upper bound on generated tokens, 0 leaves it to the provider
	TopP          float64  // Alternative to temperature for nucleus sampling
	StopSequences []string // Stop generation at these sequences
}

// DefaultGenerateParams returns default generation parameters
func DefaultGenerateParams() *GenerateParams {
	return &GenerateParams{
		Temperature: 0.7,
		MaxTokens:   500,
		TopP:        1.0,
	}
}

// SplitSystem separates system messages from the conversation. System
// contents are joined with blank lines.
func SplitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
