package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/run-bigpig/healthchat/pkg/llm"
)

// Tone selects the system prompt
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneSimple       Tone = "simple"
)

// ParseTone parses a tone name, ignoring case
func ParseTone(s string) (Tone, error) {
	switch t := Tone(strings.ToLower(strings.TrimSpace(s))); t {
	case ToneFriendly, ToneProfessional, ToneSimple:
		return t, nil
	case "":
		return ToneFriendly, nil
	default:
		return ToneFriendly, fmt.Errorf("unknown tone %q", s)
	}
}

// Info describes a registered template
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Manager owns the templates and composes conversations. It is read-only
// after construction.
type Manager struct {
	tone      Tone
	templates map[string]*Template
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithTone sets the tone
func WithTone(tone Tone) ManagerOption {
	return func(m *Manager) {
		m.tone = tone
	}
}

// WithTemplate registers or replaces a template under key. The template is
// parsed immediately; a parse failure panics.
func WithTemplate(key string, tmpl *Template) ManagerOption {
	return func(m *Manager) {
		m.templates[key] = mustParse(tmpl)
	}
}

// NewManager creates a manager with the built-in templates and friendly tone
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{tone: ToneFriendly, templates: builtins()}
	for _, option := range options {
		option(m)
	}
	return m
}

// Tone returns the configured tone
func (m *Manager) Tone() Tone {
	return m.tone
}

// SystemPrompt returns the system prompt for the configured tone
func (m *Manager) SystemPrompt() string {
	if m.tone == ToneSimple {
		return m.templates[KeySimple].Content
	}
	return m.templates[KeyMain].Content
}

// FormatConversation returns the system prompt, then history in order, then
// the new user turn. history is not modified.
func (m *Manager) FormatConversation(userMessage string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: m.SystemPrompt()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}

// EmergencyPrompt asks a model to triage a query as EMERGENCY, URGENT or ROUTINE
func (m *Manager) EmergencyPrompt(userQuery string) (string, error) {
	return m.Render(KeyEmergency, map[string]interface{}{"UserQuery": userQuery})
}

// SafetyPrompt asks a model to review a response
func (m *Manager) SafetyPrompt(response string) (string, error) {
	return m.Render(KeySafety, map[string]interface{}{"Response": response})
}

// ClarificationPrompt asks a model to request clarification of a query
func (m *Manager) ClarificationPrompt(userQuery string) (string, error) {
	return m.Render(KeyClarify, map[string]interface{}{"UserQuery": userQuery})
}

// FollowupPrompt asks a model for follow-up questions on a topic
func (m *Manager) FollowupPrompt(topic string) (string, error) {
	return m.Render(KeyFollowup, map[string]interface{}{"Topic": topic})
}

// Render renders the template registered under key
func (m *Manager) Render(key string, data map[string]interface{}) (string, error) {
	tmpl, ok := m.templates[key]
	if !ok {
		return "", fmt.Errorf("prompt %q not found", key)
	}
	return tmpl.Render(data)
}

// List describes the registered templates by key
func (m *Manager) List() map[string]Info {
	out := make(map[string]Info, len(m.templates))
	for key, t := range m.templates {
		out[key] = Info{Name: t.ID, Description: t.Description, Version: t.Version}
	}
	return out
}

// Keys returns the registered template keys in sorted order
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.templates))
	for k := range m.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
