// Package goals declares the ordered set of data fields a lead capture must
// obtain, with per-field validation and aggregate completion evaluation.
//
// The goal list drives both the question order of the capture flow and the
// "can this lead be sent" predicate. The list is swappable: the state machine
// only ever walks Registry.Definitions in order and never hardcodes a field.
package goals

import (
	"math"
	"strings"
)

// Well-known goal names used by the default registry.
const (
	GoalName    = "name"
	GoalEmail   = "email"
	GoalPhone   = "phone"
	GoalProject = "project"
)

// Result is the outcome of validating a single raw value.
type Result struct {
	// Valid reports whether the value passed validation.
	Valid bool

	// Error is the user-facing re-prompt text when Valid is false. Empty
	// otherwise.
	Error string
}

// Definition describes a single capture goal. Static configuration; never
// mutated at runtime.
type Definition struct {
	// Name identifies the goal and keys its captured value in the field map.
	Name string

	// Required goals gate lead completion. Optional goals (phone) are asked
	// but never block sending.
	Required bool

	validate func(raw string) Result
}

// Validate checks a raw user-supplied value against this goal's rules.
// The value is trimmed before validation.
func (d Definition) Validate(raw string) Result {
	if d.validate == nil {
		return Result{Valid: true}
	}
	return d.validate(strings.TrimSpace(raw))
}

// IsSatisfied reports whether this goal is complete given the captured
// fields. Optional goals are always satisfied; required goals need a stored
// value that still passes validation.
func (d Definition) IsSatisfied(fields map[string]string) bool {
	if !d.Required {
		return true
	}
	v, ok := fields[d.Name]
	if !ok {
		return false
	}
	return d.Validate(v).Valid
}

// Messages holds the user-facing validation error texts. Taken from prompt
// configuration so deployments can localise without touching the rules.
type Messages struct {
	NameTooShort    string
	InvalidEmail    string
	ProjectTooShort string
}

// Evaluation is the aggregate completion picture for a set of captured fields.
type Evaluation struct {
	// AllRequiredComplete is the authoritative "ready for confirmation"
	// predicate. Ignores optional goals.
	AllRequiredComplete bool

	// Missing lists required goal names without a valid value, in capture order.
	Missing []string

	// Completed lists goal names (required or optional) with a stored value,
	// in capture order.
	Completed []string

	// ProgressPercent is captured fields (including optional) over total
	// goals, rounded. Observability only; never used for control flow.
	ProgressPercent int
}

// Registry holds the ordered goal definitions for a lead capture.
type Registry struct {
	defs []Definition
}

// NewRegistry builds the default lead goal registry: name, email, phone
// (optional), project — asked in that order.
func NewRegistry(msgs Messages) *Registry {
	return &Registry{defs: []Definition{
		{
			Name:     GoalName,
			Required: true,
			validate: func(raw string) Result {
				if len([]rune(raw)) < 2 {
					return Result{Error: msgs.NameTooShort}
				}
				return Result{Valid: true}
			},
		},
		{
			Name:     GoalEmail,
			Required: true,
			validate: func(raw string) Result {
				if !validEmail(raw) {
					return Result{Error: msgs.InvalidEmail}
				}
				return Result{Valid: true}
			},
		},
		{
			// Phone is optional and any non-empty reply is accepted; skip
			// keywords are interpreted by the state machine, not here.
			Name:     GoalPhone,
			Required: false,
		},
		{
			Name:     GoalProject,
			Required: true,
			validate: func(raw string) Result {
				if len([]rune(raw)) < 10 {
					return Result{Error: msgs.ProjectTooShort}
				}
				return Result{Valid: true}
			},
		},
	}}
}

// Definitions returns the goals in capture order. Callers must not mutate
// the returned slice.
func (r *Registry) Definitions() []Definition {
	return r.defs
}

// Lookup returns the definition for the named goal.
func (r *Registry) Lookup(name string) (Definition, bool) {
	for _, d := range r.defs {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Validate checks raw against the named goal's rules. Unknown goal names
// validate as true so callers never hard-fail on a schema drift.
func (r *Registry) Validate(goal, raw string) Result {
	d, ok := r.Lookup(goal)
	if !ok {
		return Result{Valid: true}
	}
	return d.Validate(raw)
}

// Evaluate computes the aggregate completion picture for fields.
func (r *Registry) Evaluate(fields map[string]string) Evaluation {
	ev := Evaluation{AllRequiredComplete: true}

	captured := 0
	for _, d := range r.defs {
		v, has := fields[d.Name]
		if has && strings.TrimSpace(v) != "" {
			captured++
			ev.Completed = append(ev.Completed, d.Name)
		}
		if d.Required && !d.IsSatisfied(fields) {
			ev.AllRequiredComplete = false
			ev.Missing = append(ev.Missing, d.Name)
		}
	}

	if len(r.defs) > 0 {
		ev.ProgressPercent = int(math.Round(float64(captured) / float64(len(r.defs)) * 100))
	}
	return ev
}

// validEmail implements the single-@ / dot-after-@ rule: exactly one "@",
// a non-empty local part, and a "." in the domain that is neither its first
// nor last character. Case does not matter.
func validEmail(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	at := strings.Index(s, "@")
	if at <= 0 || at != strings.LastIndex(s, "@") {
		return false
	}
	domain := s[at+1:]
	dot := strings.Index(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(s, " \t")
}
