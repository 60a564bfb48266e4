package mcp

import (
	"context"
	"iter"
	"testing"

	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/healthchat/pkg/chatbot"
	"github.com/run-bigpig/healthchat/pkg/llm"
)

type cannedLLM struct{ calls int }

func (c *cannedLLM) Generate(context.Context, []llm.Message, *llm.GenerateParams) (string, error) {
	c.calls++
	return "Rest and hydrate.", nil
}

func (c *cannedLLM) GenerateStream(context.Context, []llm.Message, *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield("Rest and hydrate.", nil) }
}

func (c *cannedLLM) IsAvailable() bool { return true }
func (c *cannedLLM) Name() string      { return "canned" }

func TestToolServer(t *testing.T) {
	model := &cannedLLM{}
	bot, err := chatbot.New(chatbot.WithLLM(model))
	require.NoError(t, err)

	s, err := NewToolServer(bot, stdio.NewStdioServerTransport(), nil)
	require.NoError(t, err)

	resp, err := s.Ask(AskArgs{Question: "What causes headaches?"})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Rest and hydrate.", resp.Content[0].TextContent.Text)
	assert.Len(t, bot.History(), 2)

	resp, err = s.Ask(AskArgs{Question: "I think I'm having a heart attack"})
	require.NoError(t, err)
	assert.Contains(t, resp.Content[0].TextContent.Text, "call 911")
	assert.Equal(t, 1, model.calls)

	_, err = s.Clear(ClearArgs{})
	require.NoError(t, err)
	assert.Empty(t, bot.History())
}
