package lead

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Delivery composes a Store with zero or more Notifiers behind the single
// "record lead" contract the dispatcher consumes.
//
// Partial-failure policy: if the store succeeds but a notifier fails, the
// result is still Success with a diagnostic Note — the captured data is
// safe, only the ping is delayed. Only a store failure fails the delivery.
type Delivery struct {
	store     Store
	notifiers []Notifier
}

// NewDelivery builds a Delivery. store must be non-nil.
func NewDelivery(store Store, notifiers ...Notifier) *Delivery {
	return &Delivery{store: store, notifiers: notifiers}
}

// Record persists the lead and fans out notifications. Never panics and
// never returns a Go error; everything is reported through Result.
func (d *Delivery) Record(ctx context.Context, l Lead) Result {
	if err := l.Validate(); err != nil {
		return Result{Error: err.Error()}
	}

	id, err := d.store.Record(ctx, l)
	if err != nil {
		slog.Error("lead delivery: store failed", "err", err)
		return Result{Error: fmt.Sprintf("store lead: %v", err)}
	}
	l.ID = id

	var failed []string
	for _, n := range d.notifiers {
		if err := n.Notify(ctx, l); err != nil {
			slog.Warn("lead delivery: notifier failed", "lead_id", id, "err", err)
			failed = append(failed, err.Error())
		}
	}

	res := Result{Success: true, ID: id}
	if len(failed) > 0 {
		res.Note = "lead saved, but notification may be delayed: " + strings.Join(failed, "; ")
	}
	return res
}
