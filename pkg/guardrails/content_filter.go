package guardrails

import (
	"context"
	"regexp"
	"strings"
)

// ContentFilter masks blocked words, matched case-insensitively on word
// boundaries.
type ContentFilter struct {
	blockedWords []string
	action       Action
	regex        *regexp.Regexp
}

// NewContentFilter creates a content filter. Blank words are ignored.
func NewContentFilter(blockedWords []string, action Action) *ContentFilter {
	quoted := make([]string, 0, len(blockedWords))
	for _, w := range blockedWords {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}

	c := &ContentFilter{
		blockedWords: blockedWords,
		action:       action,
	}
	if len(quoted) > 0 {
		c.regex = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return c
}

// Type returns the type of guardrail
func (c *ContentFilter) Type() GuardrailType {
	return ContentFilterGuardrail
}

// CheckRequest masks blocked words in a request
func (c *ContentFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return c.mask(request)
}

// CheckResponse masks blocked words in a response
func (c *ContentFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return c.mask(response)
}

func (c *ContentFilter) mask(text string) (bool, string, error) {
	if c.regex == nil || !c.regex.MatchString(text) {
		return false, text, nil
	}
	return true, c.regex.ReplaceAllString(text, "****"), nil
}

// Action returns the action to take when the guardrail is triggered
func (c *ContentFilter) Action() Action {
	return c.action
}
