package safety

import (
	"context"
	"regexp"
	"strings"

	"github.com/run-bigpig/healthchat/pkg/logging"
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Input pattern groups, evaluated in this order.
var (
	emergencyPatterns = compile(
		`\b(chest\s*pain)\b`,
		`\b(can'?t\s*breathe|difficulty\s*breathing|shortness\s*of\s*breath)\b`,
		`\b(stroke|heart\s*attack)\b`,
		`\b(unconscious|passed\s*out|fainted)\b`,
		`\b(severe\s*bleeding|won'?t\s*stop\s*bleeding)\b`,
		`\b(overdos(e|ed|ing)?|poison(ed|ing)?)\b`,
		`\b(suicid(e|al)|kill\s*(my)?self|end\s*(my)?\s*life)\b`,
		`\b(anaphyla(xis|ctic)|allergic\s*shock)\b`,
		`\b(seizures?|convulsions?)\b`,
	)

	mentalHealthPatterns = compile(
		`\b(want\s*to\s*die|want\s*to\s*end\s*it)\b`,
		`\b(self[- ]?harm|cut(ting)?\s*myself)\b`,
		`\b(hopeless|no\s*point\s*(in\s*living)?)\b`,
		`\b(nobody\s*cares|better\s*off\s*dead)\b`,
	)

	harmfulPatterns = compile(
		`\b(how\s*to\s*(hurt|harm|poison))\b`,
		`\b(dangerous\s*combination)\b`,
		`\b(make\s*(myself|me)\s*sick)\b`,
	)

	medicationPatterns = compile(
		`\b(prescribe|prescription)\b`,
		`\b(what\s*(medication|drug|medicine)\s*should\s*i\s*take)\b`,
		`\b(dosage|how\s*much\s*should\s*i\s*take)\b`,
		`\b(can\s*i\s*take|is\s*it\s*safe\s*to\s*take)\b.*\b(mg|milligrams?)\b`,
	)

	diagnosisPatterns = compile(
		`\b(do\s*i\s*have|what\s*do\s*i\s*have)\b`,
		`\b(diagnose|diagnosis)\b`,
		`\b(is\s*this|is\s*it)\s*(cancer|serious|dangerous)\b`,
		`\b(what'?s\s*wrong\s*with\s*me)\b`,
	)
)

// Output patterns
var (
	dosageInstructionPattern = regexp.MustCompile(`(?i)\b(take|use)\s+\d+\s*(mg|ml|tablet|pill|capsule)`)
	definiteDiagnosisPattern = regexp.MustCompile(`(?i)\b(you\s+(have|definitely\s+have|probably\s+have))\s+\w+`)
)

// Filter is a fixed pattern-based risk classifier. It holds no mutable state
// and is safe for concurrent use.
type Filter struct {
	enabled bool
	logger  logging.Logger
}

// Option configures a Filter
type Option func(*Filter)

// WithEnabled turns classification on or off. A disabled filter reports
// every text as safe.
func WithEnabled(enabled bool) Option {
	return func(f *Filter) {
		f.enabled = enabled
	}
}

// WithLogger sets the logger used to report matches
func WithLogger(logger logging.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// NewFilter creates an enabled filter
func NewFilter(opts ...Option) *Filter {
	f := &Filter{enabled: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Enabled reports whether classification is active
func (f *Filter) Enabled() bool {
	return f.enabled
}

// CheckInput classifies user input.
//
// Later groups never lower a level set by an earlier group: emergency and
// mental-health matches force EMERGENCY, harmful intent raises to at least
// HIGH, and medication or diagnosis requests only lift LOW to MEDIUM. Flags
// from every matching group are kept.
func (f *Filter) CheckInput(ctx context.Context, text string) Check {
	if !f.enabled {
		return safeCheck()
	}

	flags := Flags{}
	risk := RiskLow

	if matchAny(text, emergencyPatterns) {
		flags = append(flags, FlagEmergency)
		risk = RiskEmergency
		f.logger.Warn(ctx, "Emergency keywords detected in input", nil)
	}

	if matchAny(text, mentalHealthPatterns) {
		flags = append(flags, FlagMentalHealthCrisis)
		if risk != RiskEmergency {
			risk = RiskEmergency
		}
		f.logger.Warn(ctx, "Mental health crisis keywords detected", nil)
	}

	if matchAny(text, harmfulPatterns) {
		flags = append(flags, FlagHarmfulIntent)
		risk = MaxRisk(risk, RiskHigh)
		f.logger.Warn(ctx, "Harmful intent keywords detected", nil)
	}

	if matchAny(text, medicationPatterns) {
		flags = append(flags, FlagMedicationRequest)
		if risk == RiskLow {
			risk = RiskMedium
		}
	}

	if matchAny(text, diagnosisPatterns) {
		flags = append(flags, FlagDiagnosisRequest)
		if risk == RiskLow {
			risk = RiskMedium
		}
	}

	return Check{
		IsSafe:    risk < RiskHigh,
		RiskLevel: risk,
		Flags:     flags,
		Message:   describe(flags),
	}
}

// CheckOutput classifies model-generated text. It is safe only when no flag
// is raised.
func (f *Filter) CheckOutput(ctx context.Context, text string) Check {
	if !f.enabled {
		return safeCheck()
	}

	flags := Flags{}
	risk := RiskLow

	if dosageInstructionPattern.MatchString(text) {
		flags = append(flags, FlagMedicationRequest)
		risk = RiskMedium
		f.logger.Warn(ctx, "Response contains dosage recommendation", nil)
	}

	if definiteDiagnosisPattern.MatchString(text) {
		flags = append(flags, FlagDiagnosisRequest)
		risk = RiskMedium
		f.logger.Warn(ctx, "Response contains diagnostic statement", nil)
	}

	return Check{
		IsSafe:    len(flags) == 0,
		RiskLevel: risk,
		Flags:     flags,
		Message:   describe(flags),
	}
}

func matchAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func describe(flags Flags) string {
	if len(flags) == 0 {
		return ""
	}
	return "detected: " + strings.Join(flags.Strings(), ", ")
}
