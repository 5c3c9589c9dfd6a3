// Package lead defines the lead record, the delivery contracts, and the
// default backends: a JSON-lines file store and a webhook notifier. Delivery
// composes a store with notifiers and owns the partial-failure policy —
// persisting the lead's data always takes priority over the notification
// side-channel.
package lead

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Lead is the final artifact of a completed capture. Created exactly once
// per capture, handed to the delivery backend, then immutable.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Project    string    `json:"project"`
	Transcript []string  `json:"transcript,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks that all required fields are present.
func (l Lead) Validate() error {
	var errs []error
	if l.Name == "" {
		errs = append(errs, errors.New("lead: name is required"))
	}
	if l.Email == "" {
		errs = append(errs, errors.New("lead: email is required"))
	}
	if l.Project == "" {
		errs = append(errs, errors.New("lead: project is required"))
	}
	return errors.Join(errs...)
}

// NewID returns a random 32-hex-character lead identifier.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the process is in much deeper trouble;
		// fall back to a timestamp so lead capture still works.
		return fmt.Sprintf("lead-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// Store persists leads. Implementations must assign l.ID when it is empty
// and return the stored identifier.
type Store interface {
	Record(ctx context.Context, l Lead) (id string, err error)
}

// Notifier announces a captured lead on a side channel (webhook, email).
// Failures are non-fatal for delivery.
type Notifier interface {
	Notify(ctx context.Context, l Lead) error
}

// Result is the discriminated outcome of a delivery attempt. Delivery never
// panics or returns a Go error across this boundary; callers branch on the
// fields.
type Result struct {
	// Success reports whether the lead's data was persisted.
	Success bool `json:"success"`

	// ID is the stored lead identifier when Success is true.
	ID string `json:"id,omitempty"`

	// Note carries a diagnostic on partial failure, e.g. when the lead was
	// saved but a notifier failed.
	Note string `json:"note,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}
