package guardrails

import (
	"context"
	"fmt"
	"strings"
)

// TokenCounter is an interface for counting tokens in text
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// WordCounter counts whitespace-separated words
type WordCounter struct{}

// CountTokens counts tokens in text (simple approximation)
func (WordCounter) CountTokens(text string) (int, error) {
	return len(strings.Fields(text)), nil
}

// TruncateMode selects which part of over-long text is kept
type TruncateMode string

const (
	TruncateStart  TruncateMode = "start"
	TruncateEnd    TruncateMode = "end"
	TruncateMiddle TruncateMode = "middle"
)

// TokenLimit caps text at a number of words
type TokenLimit struct {
	maxTokens    int
	counter      TokenCounter
	action       Action
	truncateMode TruncateMode
}

// NewTokenLimit creates a new token limit guardrail
func NewTokenLimit(maxTokens int, counter TokenCounter, action Action, mode TruncateMode) *TokenLimit {
	if counter == nil {
		counter = WordCounter{}
	}
	if mode == "" {
		mode = TruncateEnd
	}

	return &TokenLimit{
		maxTokens:    maxTokens,
		counter:      counter,
		action:       action,
		truncateMode: mode,
	}
}

// Type returns the type of guardrail
func (t *TokenLimit) Type() GuardrailType {
	return TokenLimitGuardrail
}

// CheckRequest trims an over-long request
func (t *TokenLimit) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return t.check(request)
}

// CheckResponse trims an over-long response
func (t *TokenLimit) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return t.check(response)
}

func (t *TokenLimit) check(text string) (bool, string, error) {
	tokens, err := t.counter.CountTokens(text)
	if err != nil {
		return false, text, fmt.Errorf("failed to count tokens: %w", err)
	}
	if tokens <= t.maxTokens {
		return false, text, nil
	}
	return true, t.truncate(text), nil
}

// Action returns the action to take when the guardrail is triggered
func (t *TokenLimit) Action() Action {
	return t.action
}

// truncate cuts text to maxTokens words; whitespace inside the kept part
// is normalized to single spaces.
func (t *TokenLimit) truncate(text string) string {
	words := strings.Fields(text)
	if len(words) <= t.maxTokens {
		return text
	}

	switch t.truncateMode {
	case TruncateStart:
		return "... " + strings.Join(words[len(words)-t.maxTokens:], " ")
	case TruncateMiddle:
		half := t.maxTokens / 2
		return strings.Join(words[:half], " ") + " ... " + strings.Join(words[len(words)-(t.maxTokens-half):], " ")
	default:
		return strings.Join(words[:t.maxTokens], " ") + " ..."
	}
}
