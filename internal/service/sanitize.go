package service

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer strips all markup from user input before it reaches storage.
// The core never persists raw input.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

var nameAllowedChars = regexp.MustCompile(`[^a-zA-Z0-9 #]`)

const maxNameInputLength = 50

func NewTextSanitizer() *TextSanitizer {
	// StrictPolicy removes every tag and escapes what remains
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText returns input with all HTML removed and surrounding
// whitespace trimmed.
func (s *TextSanitizer) SanitizeText(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}

// SanitizeName restricts display-name input to characters safe for tripcode
// parsing. More restrictive than post text.
func (s *TextSanitizer) SanitizeName(input string) string {
	sanitized := s.policy.Sanitize(input)
	sanitized = nameAllowedChars.ReplaceAllString(sanitized, "")
	if len(sanitized) > maxNameInputLength {
		sanitized = sanitized[:maxNameInputLength]
	}
	return strings.TrimSpace(sanitized)
}
