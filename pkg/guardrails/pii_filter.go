package guardrails

import (
	"context"
	"regexp"
)

type piiPattern struct {
	name  string
	regex *regexp.Regexp
}

// Checked in order; longer digit runs go before the phone pattern so a card
// number is not half-redacted as a phone.
var piiPatterns = []piiPattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
	{"medical_record", regexp.MustCompile(`(?i)\b(mrn|medical\s+record(\s+number)?)[\s:#]*\d{5,12}\b`)},
	{"insurance_id", regexp.MustCompile(`(?i)\b(member|policy|insurance)\s+(id|number)[\s:#]*[A-Z0-9]{6,15}\b`)},
	{"phone", regexp.MustCompile(`(\+\d{1,2}\s)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)},
}

// PiiFilter redacts personal identifiers, including medical record and
// insurance numbers.
type PiiFilter struct {
	patterns []piiPattern
	action   Action
}

// NewPiiFilter creates a new PII filter guardrail
func NewPiiFilter(action Action) *PiiFilter {
	return &PiiFilter{
		patterns: piiPatterns,
		action:   action,
	}
}

// Type returns the type of guardrail
func (p *PiiFilter) Type() GuardrailType {
	return PiiFilterGuardrail
}

// CheckRequest redacts identifiers in a request
func (p *PiiFilter) CheckRequest(ctx context.Context, request string) (bool, string, error) {
	return p.redact(request)
}

// CheckResponse redacts identifiers in a response
func (p *PiiFilter) CheckResponse(ctx context.Context, response string) (bool, string, error) {
	return p.redact(response)
}

func (p *PiiFilter) redact(text string) (bool, string, error) {
	modified := text
	triggered := false

	for _, pattern := range p.patterns {
		if pattern.regex.MatchString(modified) {
			triggered = true
			modified = pattern.regex.ReplaceAllString(modified, "[REDACTED "+pattern.name+"]")
		}
	}

	return triggered, modified, nil
}

// Action returns the action to take when the guardrail is triggered
func (p *PiiFilter) Action() Action {
	return p.action
}
