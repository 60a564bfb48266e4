// Package guardrails rewrites text on its way to and from the model.
//
// Guardrails never take part in risk classification. They run after the
// classifier has seen the sanitized input, and redact or trim what is sent
// to the transport and what is returned to the user.
package guardrails

import (
	"context"
	"fmt"

	"github.com/run-bigpig/healthchat/pkg/config"
	"github.com/run-bigpig/healthchat/pkg/logging"
)

// GuardrailType identifies a guardrail implementation
type GuardrailType string

const (
	ContentFilterGuardrail GuardrailType = "content_filter"
	PiiFilterGuardrail     GuardrailType = "pii_filter"
	TokenLimitGuardrail    GuardrailType = "token_limit"
)

// Action is what happens when a guardrail triggers
type Action string

const (
	// ActionRedact replaces the text with the guardrail's modified version
	ActionRedact Action = "redact"
	// ActionLog only records the trigger
	ActionLog Action = "log"
)

// Scope limits the direction a guardrail applies to
type Scope int

const (
	ScopeBoth Scope = iota
	ScopeInput
	ScopeOutput
)

// Guardrail checks one direction of traffic. Triggered reports whether the
// rule matched; modified is the rewritten text.
type Guardrail interface {
	Type() GuardrailType
	CheckRequest(ctx context.Context, request string) (triggered bool, modified string, err error)
	CheckResponse(ctx context.Context, response string) (triggered bool, modified string, err error)
	Action() Action
}

type entry struct {
	guardrail Guardrail
	scope     Scope
}

// Pipeline runs guardrails in order and implements interfaces.Guardrails
type Pipeline struct {
	entries []entry
	logger  logging.Logger
}

// NewPipeline creates an empty pipeline
func NewPipeline(logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Add appends a guardrail applied in the given scope
func (p *Pipeline) Add(g Guardrail, scope Scope) *Pipeline {
	p.entries = append(p.entries, entry{guardrail: g, scope: scope})
	return p
}

// Len returns the number of guardrails
func (p *Pipeline) Len() int {
	return len(p.entries)
}

// ProcessInput runs every input-scoped guardrail over text
func (p *Pipeline) ProcessInput(ctx context.Context, input string) (string, error) {
	return p.process(ctx, input, ScopeInput)
}

// ProcessOutput runs every output-scoped guardrail over text
func (p *Pipeline) ProcessOutput(ctx context.Context, output string) (string, error) {
	return p.process(ctx, output, ScopeOutput)
}

func (p *Pipeline) process(ctx context.Context, text string, direction Scope) (string, error) {
	for _, e := range p.entries {
		if e.scope != ScopeBoth && e.scope != direction {
			continue
		}

		check := e.guardrail.CheckRequest
		if direction == ScopeOutput {
			check = e.guardrail.CheckResponse
		}

		triggered, modified, err := check(ctx, text)
		if err != nil {
			return text, fmt.Errorf("guardrail %s: %w", e.guardrail.Type(), err)
		}
		if !triggered {
			continue
		}

		p.logger.Info(ctx, "Guardrail triggered", map[string]interface{}{
			"guardrail": string(e.guardrail.Type()),
			"action":    string(e.guardrail.Action()),
			"output":    direction == ScopeOutput,
		})
		if e.guardrail.Action() == ActionRedact {
			text = modified
		}
	}
	return text, nil
}

// FromConfig builds the pipeline described by the safety section. It
// returns nil when no guardrail is enabled.
func FromConfig(cfg config.SafetyConfig, logger logging.Logger) *Pipeline {
	p := NewPipeline(logger)
	if cfg.RedactPII {
		p.Add(NewPiiFilter(ActionRedact), ScopeBoth)
	}
	if len(cfg.BlockedWords) > 0 {
		p.Add(NewContentFilter(cfg.BlockedWords, ActionRedact), ScopeBoth)
	}
	if cfg.ResponseTokenLimit > 0 {
		p.Add(NewTokenLimit(cfg.ResponseTokenLimit, nil, ActionRedact, TruncateEnd), ScopeOutput)
	}
	if p.Len() == 0 {
		return nil
	}
	return p
}
