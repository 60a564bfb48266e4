// Package prompts holds the system prompts and helper templates, and composes
// the message list sent to the model.
package prompts

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template represents a named, versioned prompt template
type Template struct {
	ID          string
	Name        string
	Description string
	Content     string
	Version     string

	// Parsed template (cached)
	parsed *template.Template
}

// TemplateOption is a function that configures a template
type TemplateOption func(*Template)

// WithVersion sets the template version
func WithVersion(version string) TemplateOption {
	return func(t *Template) {
		t.Version = version
	}
}

// WithDescription sets the template description
func WithDescription(description string) TemplateOption {
	return func(t *Template) {
		t.Description = description
	}
}

// New creates a new template
func New(id string, name string, content string, options ...TemplateOption) *Template {
	tmpl := &Template{
		ID:      id,
		Name:    name,
		Content: content,
		Version: "1.0",
	}

	for _, option := range options {
		option(tmpl)
	}

	return tmpl
}

// Parse compiles the template content. Render calls it on first use; calling
// it up front makes later renders safe for concurrent use.
func (t *Template) Parse() error {
	if t.parsed != nil {
		return nil
	}
	parsed, err := template.New(t.ID).Option("missingkey=error").Parse(t.Content)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", t.ID, err)
	}
	t.parsed = parsed
	return nil
}

// Render renders the template with the given data
func (t *Template) Render(data map[string]interface{}) (string, error) {
	if err := t.Parse(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.ID, err)
	}

	return buf.String(), nil
}

func mustParse(t *Template) *Template {
	if err := t.Parse(); err != nil {
		panic(err)
	}
	return t
}
