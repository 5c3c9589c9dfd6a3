// Package chat defines the shared conversation types used across all leadline
// packages.
//
// These types form the lingua franca between the chat surface, the lead
// dispatcher, the capture state machine, and the summarizer. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package chat

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation turn. It is a closed
// enumeration — code that branches on Role must handle exactly these values.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is a recognised turn role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is a single message in a conversation. Turns are immutable once
// created; the transcript is an ordered, append-only sequence of turns owned
// by the chat surface. Core packages receive read-only slices of it.
type Turn struct {
	// Role is the author of this turn.
	Role Role `json:"role"`

	// Content is the text of the message.
	Content string `json:"content"`

	// Timestamp marks when the turn was created.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Speaker labels used for tagged transcript lines. The tagged form feeds both
// intent context matching and summarization input.
const (
	speakerCustomer  = "Customer"
	speakerAssistant = "Assistant"
)

// TagTurn renders a turn as a tagged transcript line ("Customer: ..." or
// "Assistant: ..."). System turns are tagged "Assistant" — from the visitor's
// point of view everything non-user is the assistant speaking.
func TagTurn(t Turn) string {
	speaker := speakerAssistant
	if t.Role == RoleUser {
		speaker = speakerCustomer
	}
	return speaker + ": " + t.Content
}

// TagTranscript renders a transcript as tagged lines, preserving order.
func TagTranscript(turns []Turn) []string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, TagTurn(t))
	}
	return lines
}

// CustomerLines returns the untagged content of every customer line in a
// tagged transcript, preserving order.
func CustomerLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if rest, ok := strings.CutPrefix(l, speakerCustomer+": "); ok {
			out = append(out, rest)
		}
	}
	return out
}
