// Package dispatch wires the intent classifier, capture state machine,
// summariser, and delivery backend into the single orchestration surface the
// chat layer consumes: detect-trigger, process-turn, send.
//
// The dispatcher never mutates state in place. Every operation returns a new
// state value; the caller persists it across turns however it likes. No
// method panics or returns a Go error across this boundary — results are
// discriminated values.
package dispatch

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lucasbarrios/leadline/internal/capture"
	"github.com/lucasbarrios/leadline/internal/goals"
	"github.com/lucasbarrios/leadline/internal/intent"
	"github.com/lucasbarrios/leadline/internal/lead"
	"github.com/lucasbarrios/leadline/internal/summary"
	"github.com/lucasbarrios/leadline/pkg/chat"
)

// Backend is the delivery contract the dispatcher invokes on send.
// Satisfied by [lead.Delivery].
type Backend interface {
	Record(ctx context.Context, l lead.Lead) lead.Result
}

// TriggerResult is the outcome of trigger detection.
type TriggerResult struct {
	// Triggered reports whether a capture was started.
	Triggered bool

	// State is the new capture state when Triggered; otherwise the input
	// state unchanged.
	State capture.State

	// Prompt is the confirmation question to show when Triggered.
	Prompt string
}

// TurnResult is the outcome of processing one visitor message through the
// state machine.
type TurnResult struct {
	Success bool
	State   capture.State

	// BotPrompt is the assistant's next line: a question, a validation
	// error, or a completion message. Empty when the message was not the
	// capture flow's to answer.
	BotPrompt string

	// ShouldSend signals the caller to invoke Send. The dispatcher does not
	// send on its own so the surface can update the UI optimistically first.
	ShouldSend bool

	// ValidationError mirrors the state machine's re-prompt text, when any.
	ValidationError string
}

// SendResult is the outcome of dispatching a lead.
type SendResult struct {
	Success bool
	LeadID  string

	// Note carries the partial-failure diagnostic from delivery, if any.
	Note  string
	Error string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher orchestrates the lead-capture core. Stateless; one instance
// serves all conversations.
type Dispatcher struct {
	classifier intent.Classifier
	machine    *capture.Machine
	registry   *goals.Registry
	summariser summary.Summariser
	backend    Backend
	now        func() time.Time
}

// New builds a Dispatcher from its collaborators.
func New(classifier intent.Classifier, machine *capture.Machine, registry *goals.Registry, summariser summary.Summariser, backend Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: classifier,
		machine:    machine,
		registry:   registry,
		summariser: summariser,
		backend:    backend,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Refresh applies the lazy cooldown rule to state. Call once per incoming
// message, before routing.
func (d *Dispatcher) Refresh(state capture.State) capture.State {
	return d.machine.Refresh(state)
}

// DetectTrigger evaluates message for buying intent. A no-op returning
// Triggered false whenever a capture is already active or completed — while
// the script runs, detection never re-fires.
func (d *Dispatcher) DetectTrigger(message string, contextLines []string, state capture.State) TriggerResult {
	if state.Step != capture.StepIdle {
		return TriggerResult{State: state}
	}
	if !d.classifier.Detect(message, contextLines) {
		return TriggerResult{State: state}
	}

	out := d.machine.Trigger(state)
	return TriggerResult{Triggered: true, State: out.State, Prompt: out.Prompt}
}

// ProcessTurn advances the capture state machine by one visitor message.
//
// On the transition that enters asking_name from pending_confirmation — the
// moment the visitor agrees to proceed — the summariser runs over the
// transcript collected so far and its brief, plus any provisional project
// context extracted from the visitor's substantive lines, is attached to the
// state's fields. The call is awaited: the returned state is always complete
// from the caller's point of view, and summarisation can only degrade, never
// fail.
func (d *Dispatcher) ProcessTurn(ctx context.Context, message string, state capture.State, transcript []chat.Turn) TurnResult {
	enteringCapture := state.Step == capture.StepPendingConfirmation

	out := d.machine.ProcessTurn(message, state)

	if enteringCapture && out.State.Step == capture.StepAskingName {
		brief := d.summariser.Summarise(ctx, transcript).Text()
		if pc := projectContext(transcript); pc != "" {
			brief += "\n\nContexto del proyecto: " + pc
		}
		out.State = out.State.WithField(capture.FieldSummary, brief)
	}

	return TurnResult{
		Success:         true,
		State:           out.State,
		BotPrompt:       out.Prompt,
		ShouldSend:      out.ShouldSend,
		ValidationError: out.ValidationError,
	}
}

// minContextLine is the length over which a customer line counts as
// substantive project context rather than a greeting or a bare confirmation.
const minContextLine = 20

// projectContext concatenates the visitor's substantive lines into a
// provisional project description for the brief.
func projectContext(transcript []chat.Turn) string {
	var parts []string
	for _, line := range chat.CustomerLines(chat.TagTranscript(transcript)) {
		if utf8.RuneCountInString(line) > minContextLine {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " | ")
}

// CanSend reports whether state holds a complete lead. Pure delegation to
// the goal registry.
func (d *Dispatcher) CanSend(state capture.State) bool {
	return d.registry.Evaluate(state.Fields).AllRequiredComplete
}

// Send constructs the lead record from state and hands it to the delivery
// backend. The required goals are re-checked first — a defensive double
// check, since the state machine only signals send after completion.
// Backend failures come back as a soft failure; nothing is thrown.
func (d *Dispatcher) Send(ctx context.Context, state capture.State) SendResult {
	if !d.CanSend(state) {
		return SendResult{Error: "lead is not complete; required fields are missing"}
	}

	l := lead.Lead{
		Name:       state.Fields[goals.GoalName],
		Email:      state.Fields[goals.GoalEmail],
		Phone:      state.Fields[goals.GoalPhone],
		Project:    state.Fields[goals.GoalProject],
		Summary:    state.Fields[capture.FieldSummary],
		Transcript: state.TranscriptLog,
		CreatedAt:  d.now(),
	}

	res := d.backend.Record(ctx, l)
	return SendResult{
		Success: res.Success,
		LeadID:  res.ID,
		Note:    res.Note,
		Error:   res.Error,
	}
}
