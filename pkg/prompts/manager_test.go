package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/healthchat/pkg/llm"
)

func TestParseTone(t *testing.T) {
	tests := []struct {
		in      string
		want    Tone
		wantErr bool
	}{
		{"friendly", ToneFriendly, false},
		{"Professional", ToneProfessional, false},
		{" SIMPLE ", ToneSimple, false},
		{"", ToneFriendly, false},
		{"sarcastic", ToneFriendly, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTone(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemPromptByTone(t *testing.T) {
	assert.Contains(t, NewManager().SystemPrompt(), "friendly and knowledgeable")
	assert.Contains(t, NewManager(WithTone(ToneProfessional)).SystemPrompt(), "friendly and knowledgeable")
	assert.Contains(t, NewManager(WithTone(ToneSimple)).SystemPrompt(), "very simple terms")
}

func TestFormatConversation(t *testing.T) {
	m := NewManager(WithTone(ToneSimple))
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "What is a fever?"},
		{Role: llm.RoleAssistant, Content: "A fever is a raised body temperature."},
	}
	snapshot := append([]llm.Message(nil), history...)

	got := m.FormatConversation("How high is too high?", history)

	require.Len(t, got, 4)
	assert.Equal(t, llm.RoleSystem, got[0].Role)
	assert.Equal(t, m.SystemPrompt(), got[0].Content)
	assert.Equal(t, history, got[1:3])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "How high is too high?"}, got[3])
	assert.Equal(t, snapshot, history)

	got[1].Content = "mutated"
	assert.Equal(t, "What is a fever?", history[0].Content)
}

func TestFormatConversationNoHistory(t *testing.T) {
	got := NewManager().FormatConversation("hi", nil)
	require.Len(t, got, 2)
	assert.Equal(t, llm.RoleSystem, got[0].Role)
	assert.Equal(t, "hi", got[1].Content)
}

func TestHelperPrompts(t *testing.T) {
	m := NewManager()

	p, err := m.EmergencyPrompt("my arm feels numb")
	require.NoError(t, err)
	assert.Contains(t, p, "Query: my arm feels numb")

	p, err = m.SafetyPrompt("Drink water.")
	require.NoError(t, err)
	assert.Contains(t, p, "RESPONSE TO CHECK:\nDrink water.")

	p, err = m.ClarificationPrompt("it hurts")
	require.NoError(t, err)
	assert.Contains(t, p, "User Query: it hurts")

	p, err = m.FollowupPrompt("sleep")
	require.NoError(t, err)
	assert.Contains(t, p, "Topic discussed: sleep")

	_, err = m.Render("missing", nil)
	assert.Error(t, err)

	_, err = m.Render(KeyFollowup, map[string]interface{}{})
	assert.Error(t, err)
}

func TestListAndCustomTemplate(t *testing.T) {
	m := NewManager(WithTemplate("greeting", New("greeting", "Greeting", "Hello {{.Name}}", WithDescription("Says hello"), WithVersion("2.0"))))

	list := m.List()
	assert.Len(t, list, 7)
	assert.Equal(t, Info{Name: "health_assistant_v1", Description: "Main system prompt for the health chatbot", Version: "1.0"}, list[KeyMain])
	assert.Equal(t, "2.0", list["greeting"].Version)
	assert.Equal(t, []string{"clarify", "emergency", "followup", "greeting", "main", "safety", "simple"}, m.Keys())

	out, err := m.Render("greeting", map[string]interface{}{"Name": "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Sam", out)

	// other managers keep the built-in set
	assert.Len(t, NewManager().List(), 6)
}

func TestTemplateParseError(t *testing.T) {
	_, err := New("bad", "Bad", "{{.Oops").Render(nil)
	assert.Error(t, err)
	assert.Panics(t, func() { NewManager(WithTemplate("bad", New("bad", "Bad", "{{"))) })
}
