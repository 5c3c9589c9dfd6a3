package capture

import (
	"strings"
	"time"

	"github.com/lucasbarrios/leadline/internal/goals"
)

// Prompts holds every user-visible text the state machine can emit.
// Opaque to the machine; deployments localise via configuration.
type Prompts struct {
	ConfirmCapture string
	AskName        string
	AskEmail       string
	AskPhone       string
	AskProject     string
	ConfirmSend    string
	Completed      string
	Declined       string
	Ambiguous      string
}

// Config tunes a capture Machine.
type Config struct {
	// Cooldown is the grace period after completion during which triggers
	// are suppressed. Evaluated lazily on each message; no timers.
	Cooldown time.Duration

	// Affirmations and Negatives classify yes/no replies.
	Affirmations []string
	Negatives    []string

	// SkipKeywords let the visitor decline the optional phone question.
	SkipKeywords []string

	// FuzzyThreshold is the minimum Jaro-Winkler similarity for fuzzy yes/no
	// matching of single-token replies.
	FuzzyThreshold float64

	Prompts Prompts
}

// Outcome is the result of one state-machine operation.
type Outcome struct {
	// State is the successor state. Equals the input state (same step) on
	// validation failure or ambiguity.
	State State

	// Prompt is the next thing the assistant should say. May be empty when
	// the message is not the machine's to answer (idle/completed routing).
	Prompt string

	// ShouldSend is true exactly once per capture: on the
	// confirm_send -> completed transition. Signals the orchestrator to
	// dispatch the lead.
	ShouldSend bool

	// ValidationError is the re-prompt text when a goal validator rejected
	// the answer. The step does not advance while it is non-empty.
	ValidationError string
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine executes the capture script against the goal registry. Stateless;
// safe for concurrent use across conversations.
type Machine struct {
	goals    *goals.Registry
	yesno    *yesNoClassifier
	skip     []string
	prompts  Prompts
	cooldown time.Duration
	now      func() time.Time
}

// NewMachine builds a Machine from the goal registry and tuning config.
func NewMachine(reg *goals.Registry, cfg Config, opts ...Option) *Machine {
	m := &Machine{
		goals:    reg,
		yesno:    newYesNoClassifier(cfg.Affirmations, cfg.Negatives, cfg.FuzzyThreshold),
		prompts:  cfg.Prompts,
		cooldown: cfg.Cooldown,
		now:      time.Now,
	}
	for _, kw := range cfg.SkipKeywords {
		if n := normalizeReply(kw); n != "" {
			m.skip = append(m.skip, n)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Trigger promotes an idle state to pending_confirmation and returns the
// confirmation prompt. The caller must have already established intent.
func (m *Machine) Trigger(s State) Outcome {
	next := s.clone()
	next.Step = StepPendingConfirmation
	next.StartedAt = m.now()
	return Outcome{State: next, Prompt: m.prompts.ConfirmCapture}
}

// Refresh applies the lazy cooldown rule: a completed state older than the
// cooldown resets to idle (fields cleared) so a new capture can begin.
// Any other state passes through unchanged.
func (m *Machine) Refresh(s State) State {
	if s.Step != StepCompleted {
		return s
	}
	if s.CompletedAt.IsZero() || m.now().Sub(s.CompletedAt) < m.cooldown {
		return s
	}
	next := NewState()
	next.TranscriptLog = append([]string(nil), s.TranscriptLog...)
	return next
}

// ProcessTurn advances the state machine by one visitor message.
//
// Steps idle and completed return the state unchanged with no prompt: those
// messages belong to trigger detection and the free-form responder, which
// the orchestrator routes.
func (m *Machine) ProcessTurn(message string, s State) Outcome {
	switch s.Step {
	case StepPendingConfirmation:
		return m.onPendingConfirmation(message, s)
	case StepAskingName:
		return m.onGoalAnswer(message, s, goals.GoalName, StepAskingEmail, m.prompts.AskEmail)
	case StepAskingEmail:
		return m.onGoalAnswer(message, s, goals.GoalEmail, StepAskingPhone, m.prompts.AskPhone)
	case StepAskingPhone:
		return m.onPhone(message, s)
	case StepAskingProject:
		return m.onProject(message, s)
	case StepConfirmSend:
		return m.onConfirmSend(message, s)
	default:
		return Outcome{State: s}
	}
}

// onPendingConfirmation handles the "do you want to proceed?" answer.
func (m *Machine) onPendingConfirmation(message string, s State) Outcome {
	switch m.yesno.Classify(message) {
	case ReplyYes:
		next := s.clone()
		next.Step = StepAskingName
		return Outcome{State: next, Prompt: m.prompts.AskName}
	case ReplyNo:
		next := NewState()
		next.TranscriptLog = append([]string(nil), s.TranscriptLog...)
		return Outcome{State: next, Prompt: m.prompts.Declined}
	default:
		return Outcome{State: s, Prompt: m.prompts.Ambiguous}
	}
}

// onGoalAnswer validates message against the named goal; on success the
// value is stored and the script advances, otherwise the step re-prompts.
func (m *Machine) onGoalAnswer(message string, s State, goal string, nextStep Step, nextPrompt string) Outcome {
	res := m.goals.Validate(goal, message)
	if !res.Valid {
		return Outcome{State: s, Prompt: res.Error, ValidationError: res.Error}
	}
	next := s.WithField(goal, strings.TrimSpace(message))
	next.Step = nextStep
	return Outcome{State: next, Prompt: nextPrompt}
}

// onPhone advances unconditionally: phone is optional, skip keywords and
// empty replies leave it unset, anything else is stored verbatim.
func (m *Machine) onPhone(message string, s State) Outcome {
	trimmed := strings.TrimSpace(message)
	next := s
	if trimmed != "" && !contains(m.skip, normalizeReply(trimmed)) {
		next = s.WithField(goals.GoalPhone, trimmed)
	} else {
		next = s.clone()
	}
	next.Step = StepAskingProject
	return Outcome{State: next, Prompt: m.prompts.AskProject}
}

// onProject validates the description and, with all required goals complete,
// moves to final confirmation. If a required goal is somehow still missing
// the script loops back to the earliest gap instead of advancing.
func (m *Machine) onProject(message string, s State) Outcome {
	res := m.goals.Validate(goals.GoalProject, message)
	if !res.Valid {
		return Outcome{State: s, Prompt: res.Error, ValidationError: res.Error}
	}
	next := s.WithField(goals.GoalProject, strings.TrimSpace(message))

	ev := m.goals.Evaluate(next.Fields)
	if !ev.AllRequiredComplete {
		step, prompt := m.askStepFor(ev.Missing[0])
		next.Step = step
		return Outcome{State: next, Prompt: prompt}
	}

	next.Step = StepConfirmSend
	return Outcome{State: next, Prompt: m.prompts.ConfirmSend}
}

// onConfirmSend handles the final yes/no. Declining returns to idle but
// keeps the captured fields: the visitor may change their mind and the data
// is theirs to reuse.
func (m *Machine) onConfirmSend(message string, s State) Outcome {
	switch m.yesno.Classify(message) {
	case ReplyYes:
		next := s.clone()
		next.Step = StepCompleted
		next.CompletedAt = m.now()
		return Outcome{State: next, Prompt: m.prompts.Completed, ShouldSend: true}
	case ReplyNo:
		next := s.clone()
		next.Step = StepIdle
		return Outcome{State: next, Prompt: m.prompts.Declined}
	default:
		return Outcome{State: s, Prompt: m.prompts.Ambiguous}
	}
}

// askStepFor maps a goal name back to its asking step and prompt.
func (m *Machine) askStepFor(goal string) (Step, string) {
	switch goal {
	case goals.GoalName:
		return StepAskingName, m.prompts.AskName
	case goals.GoalEmail:
		return StepAskingEmail, m.prompts.AskEmail
	case goals.GoalPhone:
		return StepAskingPhone, m.prompts.AskPhone
	default:
		return StepAskingProject, m.prompts.AskProject
	}
}
