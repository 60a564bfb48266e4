// Package safety classifies conversational text by risk and produces the
// canned emergency scripts and disclaimers attached to responses.
package safety

import (
	"fmt"
	"strings"
)

// RiskLevel is an ordinal severity. Comparisons follow the declaration order.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskEmergency
)

var riskNames = [...]string{"low", "medium", "high", "emergency"}

// String returns the lowercase name of the level
func (r RiskLevel) String() string {
	if r < RiskLow || r > RiskEmergency {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskNames[r]
}

// MarshalText implements encoding.TextMarshaler
func (r RiskLevel) MarshalText() ([]byte, error) {
	if r < RiskLow || r > RiskEmergency {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(riskNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// ParseRiskLevel parses a risk level name, ignoring case
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return RiskLevel(i), nil
		}
	}
	return RiskLow, fmt.Errorf("unknown risk level %q", s)
}

// MaxRisk returns the most severe of the given levels, or RiskLow if none
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}

// ContentFlag tags a detected content category
type ContentFlag string

const (
	FlagEmergency          ContentFlag = "emergency"
	FlagMedicationRequest  ContentFlag = "medication_request"
	FlagDiagnosisRequest   ContentFlag = "diagnosis_request"
	FlagMentalHealthCrisis ContentFlag = "mental_health_crisis"
	FlagHarmfulIntent      ContentFlag = "harmful_intent"
	FlagChildSafety        ContentFlag = "child_safety"
)

// Flags is an ordered set of content flags
type Flags []ContentFlag

// Has reports whether f is present
func (fs Flags) Has(f ContentFlag) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Strings returns the flag names
func (fs Flags) Strings() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

// MergeFlags unions flag sets, dropping duplicates and keeping first-seen order.
// The result is never nil.
func MergeFlags(sets ...Flags) Flags {
	out := Flags{}
	for _, set := range sets {
		for _, f := range set {
			if !out.Has(f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Check is the result of one classification pass
type Check struct {
	IsSafe    bool
	RiskLevel RiskLevel
	Flags     Flags
	Message   string
}

func safeCheck() Check {
	return Check{IsSafe: true, RiskLevel: RiskLow, Flags: Flags{}}
}
