package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError(t *testing.T) {
	base := errors.New("connection refused")
	err := NewClientError("openai", "generate", base)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "openai", ce.Provider)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "openai generate: connection refused", err.Error())

	// already wrapped errors are not nested again
	again := NewClientError("vertex", "stream", fmt.Errorf("retry: %w", err))
	require.True(t, errors.As(again, &ce))
	assert.Equal(t, "openai", ce.Provider)

	assert.NoError(t, NewClientError("openai", "generate", nil))
}

func TestIsTransportError(t *testing.T) {
	assert.True(t, IsTransportError(NewClientError("anthropic", "generate", errors.New("boom"))))
	assert.True(t, IsTransportError(fmt.Errorf("gemini: %w", ErrNotConfigured)))
	assert.False(t, IsTransportError(errors.New("template failed")))
	assert.False(t, IsTransportError(nil))
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleAssistant, Content: "hello"},
	})
	assert.Equal(t, "be kind\n\nbe brief", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}, rest)
}
