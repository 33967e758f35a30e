package utils

import "strings"

// StringHelper cleans upstream text before it is logged or attached to an error.
type StringHelper struct {
	ellipsis string
}

// NewStringHelper creates a helper that marks cut text with "...".
func NewStringHelper() *StringHelper {
	return &StringHelper{ellipsis: "..."}
}

// NormalizeWhitespace collapses runs of whitespace into one space.
func (s *StringHelper) NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// TruncateString cuts str to maxRunes runes and appends the ellipsis when it cut.
func (s *StringHelper) TruncateString(str string, maxRunes int) string {
	runes := []rune(str)
	if len(runes) <= maxRunes {
		return str
	}

	return string(runes[:maxRunes]) + s.ellipsis
}

// Snippet is a single-line, bounded preview of a response body.
func (s *StringHelper) Snippet(body []byte, maxRunes int) string {
	return s.TruncateString(s.NormalizeWhitespace(string(body)), maxRunes)
}
