package safety

import "strings"

const crisisResponse = `🆘 **I'm concerned about you.**

If you're having thoughts of suicide or self-harm, please reach out for help right now:

**National Suicide Prevention Lifeline:** 988 (US)
**Crisis Text Line:** Text HOME to 741741
**International Association for Suicide Prevention:** https://www.iasp.info/resources/Crisis_Centres/

You're not alone, and there are people who want to help. Please talk to someone. 💙`

const emergencyResponse = `🚨 **This sounds like it could be a medical emergency.**

Please **call 911** (or your local emergency number) or **go to the nearest emergency room immediately**.

If someone is with you, have them help you get emergency care.

Do not wait to see if symptoms improve. Time is critical in medical emergencies.

**Emergency contacts:**
- 🇺🇸 US: 911
- 🇬🇧 UK: 999
- 🇪🇺 EU: 112
- 🇦🇺 AU: 000`

const (
	mediumDisclaimer = "\n\n---\n📋 *Remember: This is general information only. Please consult a healthcare provider for personalized medical advice.*"
	highDisclaimer   = "\n\n---\n⚠️ **Important:** This information is not a substitute for professional medical advice. Please consult a doctor or healthcare provider, especially if your symptoms are severe or concerning."
)

// EmergencyResponse returns the canned script for the given flags. A mental
// health crisis takes precedence over a medical emergency; with neither flag
// the result is empty.
func EmergencyResponse(flags Flags) string {
	switch {
	case flags.Has(FlagMentalHealthCrisis):
		return crisisResponse
	case flags.Has(FlagEmergency):
		return emergencyResponse
	default:
		return ""
	}
}

// Disclaimer returns the suffix attached to responses at the given level.
// LOW and EMERGENCY have none.
func Disclaimer(level RiskLevel) string {
	switch level {
	case RiskMedium:
		return mediumDisclaimer
	case RiskHigh:
		return highDisclaimer
	default:
		return ""
	}
}

// AddDisclaimer appends the disclaimer for level unless text already contains it.
func AddDisclaimer(text string, level RiskLevel) string {
	d := Disclaimer(level)
	if d == "" || strings.Contains(text, d) {
		return text
	}
	return text + d
}

// EmergencyResponse is the Filter-bound form of the package function
func (f *Filter) EmergencyResponse(flags Flags) string {
	return EmergencyResponse(flags)
}

// AddDisclaimer is the Filter-bound form of the package function
func (f *Filter) AddDisclaimer(text string, level RiskLevel) string {
	return AddDisclaimer(text, level)
}
