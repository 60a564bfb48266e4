package chatbot

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/guardrails"
	"github.com/run-bigpig/healthchat/pkg/interfaces"
	"github.com/run-bigpig/healthchat/pkg/llm"
	"github.com/run-bigpig/healthchat/pkg/memory"
	"github.com/run-bigpig/healthchat/pkg/prompts"
	"github.com/run-bigpig/healthchat/pkg/safety"
)

// scriptedLLM answers with fixed text and records what it was sent
type scriptedLLM struct {
	reply       string
	fragments   []string
	err         error
	streamErr   error
	panicMsg    string
	streamPanic string
	calls       int
	streamCalls int
	sent        [][]llm.Message
}

func (s *scriptedLLM) Generate(_ context.Context, messages []llm.Message, _ *llm.GenerateParams) (string, error) {
	s.calls++
	s.sent = append(s.sent, messages)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *scriptedLLM) GenerateStream(_ context.Context, messages []llm.Message, _ *llm.GenerateParams) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.streamCalls++
		s.sent = append(s.sent, messages)
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.streamPanic != "" {
			panic(s.streamPanic)
		}
		if s.streamErr != nil {
			yield("", s.streamErr)
		}
	}
}

func (s *scriptedLLM) IsAvailable() bool { return true }
func (s *scriptedLLM) Name() string      { return "scripted" }

func newChatbot(t *testing.T, model *scriptedLLM, opts ...Option) *Chatbot {
	t.Helper()
	c, err := New(append([]Option{WithLLM(model)}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewRequiresLLM(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoLLM)
}

func TestChatGeneralQuestion(t *testing.T) {
	model := &scriptedLLM{reply: "Common causes include stress and dehydration."}
	c := newChatbot(t, model)

	resp := c.Chat(context.Background(), "  What   causes headaches? ")

	assert.True(t, resp.Success)
	assert.Equal(t, safety.RiskLow, resp.RiskLevel)
	assert.Empty(t, resp.Flags)
	assert.False(t, resp.WasFiltered)
	assert.Equal(t, model.reply, resp.Content)
	assert.Equal(t, 1, model.calls)

	sent := model.sent[0]
	require.Len(t, sent, 2)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What causes headaches?"}, sent[1])

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, "What causes headaches?", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, "low", history[1].Metadata["risk_level"])
	assert.Len(t, history[0].ID, 8)
}

func TestChatEmergencyNeverCallsLLM(t *testing.T) {
	model := &scriptedLLM{reply: "should not be used"}
	c := newChatbot(t, model)

	resp := c.Chat(context.Background(), "I have severe CHEST PAIN")

	assert.Equal(t, 0, model.calls)
	assert.True(t, resp.Success)
	assert.True(t, resp.WasFiltered)
	assert.Equal(t, safety.RiskEmergency, resp.RiskLevel)
	assert.True(t, resp.Flags.Has(safety.FlagEmergency))
	assert.Contains(t, resp.Content, "call 911")

	history := c.History()
	require.Len(t, history, 2)
	assert.Equal(t, "I have severe CHEST PAIN", history[0].Content)
	assert.Equal(t, resp.Content, history[1].Content)
	assert.Equal(t, "emergency", history[1].Metadata["risk_level"])
}

func TestChatCrisisTakesPrecedence(t *testing.T) {
	model := &scriptedLLM{}
	c := newChatbot(t, model)

	resp := c.Chat(context.Background(), "I have chest pain and I want to die")

	assert.Equal(t, 0, model.calls)
	assert.Contains(t, resp.Content, "988")
	assert.NotContains(t, resp.Content, "call 911")
	assert.Equal(t, safety.Flags{safety.FlagEmergency, safety.FlagMentalHealthCrisis}, resp.Flags)
}

func TestChatMediumDisclaimer(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"plain reply", "Follow the directions on the label."},
		{"reply already carries disclaimer", "Follow the label." + safety.Disclaimer(safety.RiskMedium)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChatbot(t, &scriptedLLM{reply: tt.reply})
			resp := c.Chat(context.Background(), "What dosage of ibuprofen should I take?")

			assert.True(t, resp.Success)
			assert.Equal(t, safety.RiskMedium, resp.RiskLevel)
			assert.True(t, resp.Flags.Has(safety.FlagMedicationRequest))
			assert.True(t, strings.HasSuffix(resp.Content, safety.Disclaimer(safety.RiskMedium)))
			assert.Equal(t, 1, strings.Count(resp.Content, "general information only"))
		})
	}
}

func TestChatOutputClassification(t *testing.T) {
	c := newChatbot(t, &scriptedLLM{reply: "You definitely have migraines."})
	resp := c.Chat(context.Background(), "What dosage of ibuprofen should I take?")

	assert.Equal(t, safety.RiskMedium, resp.RiskLevel)
	assert.Equal(t, safety.Flags{safety.FlagMedicationRequest, safety.FlagDiagnosisRequest}, resp.Flags)
	assert.True(t, resp.WasFiltered)

	low := newChatbot(t, &scriptedLLM{reply: "You definitely have migraines."})
	resp = low.Chat(context.Background(), "What causes headaches?")
	assert.Equal(t, safety.RiskMedium, resp.RiskLevel)
	assert.Equal(t, safety.Flags{safety.FlagDiagnosisRequest}, resp.Flags)
	assert.True(t, strings.HasSuffix(resp.Content, safety.Disclaimer(safety.RiskMedium)))
}

func TestChatHighRiskDisclaimer(t *testing.T) {
	c := newChatbot(t, &scriptedLLM{reply: "Some medicines interact badly."})
	resp := c.Chat(context.Background(), "Is there a dangerous combination of cold medicines?")

	assert.True(t, resp.Success)
	assert.Equal(t, safety.RiskHigh, resp.RiskLevel)
	assert.Contains(t, resp.Content, "not a substitute for professional medical advice")
}

func TestChatEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\x00\x07\t\n"} {
		model := &scriptedLLM{reply: "unused"}
		c := newChatbot(t, model)

		resp := c.Chat(context.Background(), input)

		assert.False(t, resp.Success)
		assert.Equal(t, RephraseMessage, resp.Content)
		assert.Equal(t, safety.RiskLow, resp.RiskLevel)
		assert.Empty(t, resp.Flags)
		assert.Empty(t, c.History())
		assert.Equal(t, 0, model.calls)
	}
}

func TestChatTransportFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"client error", llm.NewClientError("scripted", "generate", errors.New("dial tcp 10.0.0.7:443: connection refused"))},
		{"not configured", llm.ErrNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newChatbot(t, &scriptedLLM{err: tt.err})
			resp := c.Chat(context.Background(), "What causes headaches?")

			assert.False(t, resp.Success)
			assert.Equal(t, safety.RiskLow, resp.RiskLevel)
			assert.Empty(t, resp.Flags)
			assert.Equal(t, ConnectionFailureMessage, resp.Content)
			assert.NotContains(t, resp.Content, "10.0.0.7")
			assert.Equal(t, tt.err.Error(), resp.ErrorMessage)
			assert.Empty(t, c.History())
		})
	}
}

func TestChatUnexpectedFailure(t *testing.T) {
	t.Run("non transport error", func(t *testing.T) {
		c := newChatbot(t, &scriptedLLM{err: errors.New("index out of range")})
		resp := c.Chat(context.Background(), "What causes headaches?")

		assert.False(t, resp.Success)
		assert.Equal(t, UnexpectedErrorMessage, resp.Content)
		assert.Equal(t, safety.RiskLow, resp.RiskLevel)
	})

	t.Run("panic", func(t *testing.T) {
		c := newChatbot(t, &scriptedLLM{panicMsg: "nil map"})
		var resp *ChatResponse
		require.NotPanics(t, func() {
			resp = c.Chat(context.Background(), "What causes headaches?")
		})

		assert.False(t, resp.Success)
		assert.Equal(t, UnexpectedErrorMessage, resp.Content)
		assert.Equal(t, safety.RiskLow, resp.RiskLevel)
		assert.Contains(t, resp.ErrorMessage, "nil map")
	})
}

func TestHistoryBound(t *testing.T) {
	model := &scriptedLLM{reply: "ok"}
	c := newChatbot(t, model, WithMaxHistory(2))

	inputs := []string{"first question", "second question", "third question", "fourth question", "fifth question"}
	for _, in := range inputs {
		require.True(t, c.Chat(context.Background(), in).Success)
	}

	history := c.History()
	require.Len(t, history, 4)
	assert.Equal(t, "fourth question", history[0].Content)
	assert.Equal(t, "ok", history[1].Content)
	assert.Equal(t, "fifth question", history[2].Content)

	// the model saw the bounded history before the last turn
	last := model.sent[len(model.sent)-1]
	require.Len(t, last, 6)
	assert.Equal(t, "third question", last[1].Content)
	assert.Equal(t, "fifth question", last[5].Content)
}

func TestHistoryIsACopy(t *testing.T) {
	c := newChatbot(t, &scriptedLLM{reply: "ok"})
	c.Chat(context.Background(), "What causes headaches?")

	history := c.History()
	history[0].Content = "tampered"
	assert.Equal(t, "What causes headaches?", c.History()[0].Content)

	c.ClearHistory(context.Background())
	assert.Empty(t, c.History())
	assert.Len(t, history, 2)
}

func TestGuardrails(t *testing.T) {
	model := &scriptedLLM{reply: "Write to care@clinic.example for an appointment."}
	pipeline := guardrails.NewPipeline(nil).Add(guardrails.NewPiiFilter(guardrails.ActionRedact), guardrails.ScopeBoth)
	c := newChatbot(t, model, WithGuardrails(pipeline))

	resp := c.Chat(context.Background(), "I am jane@example.com, what dosage of ibuprofen should I take?")

	sent := model.sent[0]
	assert.Equal(t, "I am [REDACTED email], what dosage of ibuprofen should I take?", sent[len(sent)-1].Content)
	assert.NotContains(t, sent[0].Content, "REDACTED")

	// classification saw the unredacted text, output redaction marks the reply filtered
	assert.Equal(t, safety.RiskMedium, resp.RiskLevel)
	assert.True(t, resp.WasFiltered)
	assert.Contains(t, resp.Content, "[REDACTED email]")
	assert.Contains(t, c.History()[0].Content, "jane@example.com")

	// redacted history on the next turn
	c.Chat(context.Background(), "thanks")
	next := model.sent[1]
	assert.Contains(t, next[1].Content, "[REDACTED email]")
}

type brokenMemory struct{ writes int }

func (b *brokenMemory) AddMessage(context.Context, interfaces.Message) error {
	b.writes++
	return errors.New("disk full")
}

func (b *brokenMemory) GetMessages(context.Context, ...interfaces.GetMessagesOption) ([]interfaces.Message, error) {
	return nil, errors.New("disk full")
}

func (b *brokenMemory) Clear(context.Context) error { return errors.New("disk full") }

func TestTranscript(t *testing.T) {
	buffer := memory.NewConversationBuffer()
	c := newChatbot(t, &scriptedLLM{reply: "ok"}, WithTranscript(buffer), WithID("session-1"))

	c.Chat(context.Background(), "What causes headaches?")
	c.Chat(context.Background(), "I have chest pain")

	ctx := memory.WithConversationID(context.Background(), "session-1")
	msgs, err := buffer.GetMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, c.History(), msgs)

	c.ClearHistory(context.Background())
	msgs, err = buffer.GetMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	broken := &brokenMemory{}
	c = newChatbot(t, &scriptedLLM{reply: "ok"}, WithTranscript(broken))
	resp := c.Chat(context.Background(), "What causes headaches?")
	assert.True(t, resp.Success)
	assert.Equal(t, 2, broken.writes)
	assert.Len(t, c.History(), 2)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.Tone = "simple"
	cfg.Safety.Enabled = false
	cfg.Safety.RedactPII = true

	model := &scriptedLLM{reply: "ok"}
	c, err := NewFromConfig(cfg, model)
	require.NoError(t, err)

	resp := c.Chat(context.Background(), "I have chest pain, mail me at a@b.io")
	assert.Equal(t, 1, model.calls, "disabled filter lets emergencies through")
	assert.Equal(t, safety.RiskLow, resp.RiskLevel)

	sent := model.sent[0]
	assert.Equal(t, prompts.NewManager(prompts.WithTone(prompts.ToneSimple)).SystemPrompt(), sent[0].Content)
	assert.Contains(t, sent[1].Content, "[REDACTED email]")

	cfg.Chat.Tone = "grumpy"
	_, err = NewFromConfig(cfg, model)
	assert.Error(t, err)
}
