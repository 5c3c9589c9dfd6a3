// Package capture implements the lead-capture conversation state machine:
// a finite-state script that asks one question per turn, validates answers
// against the goal registry, and requests explicit confirmation before the
// lead is sent.
//
// Every operation is a pure function (input, state) -> (output, newState).
// The caller owns state storage; nothing here holds per-conversation state.
package capture

import (
	"maps"
	"time"
)

// Step identifies where the capture script currently is. The single source
// of truth for what the system is doing with a conversation.
type Step string

const (
	// StepIdle means no capture is active; messages flow to the free-form
	// responder and trigger detection.
	StepIdle Step = "idle"

	// StepPendingConfirmation means intent was detected and the visitor has
	// been asked whether to proceed.
	StepPendingConfirmation Step = "pending_confirmation"

	StepAskingName    Step = "asking_name"
	StepAskingEmail   Step = "asking_email"
	StepAskingPhone   Step = "asking_phone"
	StepAskingProject Step = "asking_project"

	// StepConfirmSend means all data is collected and the visitor has been
	// asked for final confirmation.
	StepConfirmSend Step = "confirm_send"

	// StepCompleted means the lead was confirmed and dispatched. Re-openable
	// after the cooldown elapses.
	StepCompleted Step = "completed"
)

// IsValid reports whether s is a recognised step.
func (s Step) IsValid() bool {
	switch s {
	case StepIdle, StepPendingConfirmation, StepAskingName, StepAskingEmail,
		StepAskingPhone, StepAskingProject, StepConfirmSend, StepCompleted:
		return true
	}
	return false
}

// Active reports whether a capture script is in progress (between trigger
// and completion).
func (s Step) Active() bool {
	switch s {
	case StepPendingConfirmation, StepAskingName, StepAskingEmail,
		StepAskingPhone, StepAskingProject, StepConfirmSend:
		return true
	}
	return false
}

// FieldSummary is the field-map key under which the conversation summary
// brief is stored once the summariser has run.
const FieldSummary = "summary"

// State is the capture state for one conversation. Values are treated as
// immutable: operations return a modified copy and never mutate the input.
type State struct {
	// Step is the current position in the capture script.
	Step Step `json:"step"`

	// Fields maps goal name to captured value. Accumulates monotonically
	// during a capture; cleared only on an explicit idle reset.
	Fields map[string]string `json:"fields,omitempty"`

	// TranscriptLog is the speaker-tagged transcript accumulated during the
	// conversation ("Customer: ...", "Assistant: ..."). Append-only while a
	// capture is active; feeds intent context and summarisation.
	TranscriptLog []string `json:"transcript_log,omitempty"`

	// StartedAt marks when the capture was triggered.
	StartedAt time.Time `json:"started_at,omitzero"`

	// CompletedAt marks when the capture finished; drives the cooldown.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// NewState returns the initial idle state for a fresh conversation.
func NewState() State {
	return State{Step: StepIdle}
}

// Field returns the captured value for goal, if any.
func (s State) Field(goal string) (string, bool) {
	v, ok := s.Fields[goal]
	return v, ok
}

// WithField returns a copy of s with goal set to value.
func (s State) WithField(goal, value string) State {
	out := s.clone()
	if out.Fields == nil {
		out.Fields = make(map[string]string, 4)
	}
	out.Fields[goal] = value
	return out
}

// WithLog returns a copy of s with lines appended to the transcript log.
func (s State) WithLog(lines ...string) State {
	out := s.clone()
	out.TranscriptLog = append(out.TranscriptLog, lines...)
	return out
}

// clone deep-copies s so callers can derive new states without aliasing.
func (s State) clone() State {
	out := s
	if s.Fields != nil {
		out.Fields = maps.Clone(s.Fields)
	}
	out.TranscriptLog = append([]string(nil), s.TranscriptLog...)
	return out
}
