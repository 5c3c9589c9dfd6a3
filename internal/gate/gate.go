// Package gate holds the pre-core message gates: inbound message validation
// and sanitisation, a sliding-window rate limiter, and the captcha contract.
//
// Everything here runs before the dispatcher; the core assumes any message
// reaching it has already passed these gates.
package gate

import (
	"errors"
	"strings"
	"unicode"
)

// Sanitisation errors. User-facing handlers map these to 4xx responses.
var (
	ErrEmptyMessage = errors.New("gate: message is empty")
	ErrTooLong      = errors.New("gate: message exceeds maximum length")
	ErrDangerous    = errors.New("gate: message contains disallowed content")
)

// dangerousFragments are substrings that have no business in a chat message
// and usually indicate an injection attempt against whatever renders the
// transcript later.
var dangerousFragments = []string{
	"<script",
	"</script",
	"javascript:",
	"data:text/html",
	"onerror=",
	"onload=",
	"<iframe",
}

// Validator checks and cleans inbound chat messages.
type Validator struct {
	maxLen int
}

// NewValidator builds a Validator. maxLen bounds the message length in
// runes; zero or negative disables the length check.
func NewValidator(maxLen int) *Validator {
	return &Validator{maxLen: maxLen}
}

// Sanitize trims, strips control characters, and enforces the length and
// content rules. Returns the cleaned message or one of the package errors.
func (v *Validator) Sanitize(message string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, message)
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return "", ErrEmptyMessage
	}
	if v.maxLen > 0 && len([]rune(cleaned)) > v.maxLen {
		return "", ErrTooLong
	}

	lower := strings.ToLower(cleaned)
	for _, frag := range dangerousFragments {
		if strings.Contains(lower, frag) {
			return "", ErrDangerous
		}
	}
	return cleaned, nil
}
