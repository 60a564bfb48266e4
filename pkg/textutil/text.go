// Package textutil holds the input sanitizer and small text helpers.
package textutil

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxInputLength is the largest accepted input, in characters
const DefaultMaxInputLength = 1000

// TruncationMarker is appended to input cut at the length limit
const TruncationMarker = "..."

// Sanitizer normalizes raw user input
type Sanitizer struct {
	MaxLength int
}

// NewSanitizer returns a sanitizer with the given limit. Non-positive limits
// select DefaultMaxInputLength.
func NewSanitizer(maxLength int) Sanitizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxInputLength
	}
	return Sanitizer{MaxLength: maxLength}
}

// Sanitize drops control characters, collapses runs of whitespace to a single
// space, truncates to MaxLength characters with a marker and trims the result.
// Blank input yields "".
func (s Sanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.Map(func(r rune) rune {
		if isStripped(r) {
			return -1
		}
		return r
	}, text)

	text = strings.Join(strings.Fields(text), " ")

	max := s.MaxLength
	if max <= 0 {
		max = DefaultMaxInputLength
	}
	if utf8.RuneCountInString(text) > max {
		text = string([]rune(text)[:max]) + TruncationMarker
	}

	return strings.TrimSpace(text)
}

// Sanitize applies the default sanitizer
func Sanitize(text string) string {
	return NewSanitizer(DefaultMaxInputLength).Sanitize(text)
}

// isStripped matches C0 controls other than tab, newline and carriage return,
// plus DEL and the C1 range.
func isStripped(r rune) bool {
	switch {
	case r <= 0x08, r == 0x0b, r == 0x0c:
		return true
	case r >= 0x0e && r <= 0x1f:
		return true
	case r >= 0x7f && r <= 0x9f:
		return true
	}
	return false
}

// TruncateText shortens text to at most maxLength characters, ending with
// suffix when cut.
func TruncateText(text string, maxLength int, suffix string) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	keep := maxLength - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + suffix
}

// ApproximateTokens estimates tokens at four characters each
func ApproximateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// FormatTimestamp renders t for display; the zero time means now
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("2006-01-02 15:04:05")
}
