package gate

import (
	"sync"
	"time"
)

// Allower is the allow/deny contract shared by the rate limiter and captcha
// gates. identifier is whatever the surface uses to tell visitors apart
// (session ID, client IP).
type Allower interface {
	Allow(identifier string) bool
}

// Compile-time interface check.
var _ Allower = (*SlidingWindow)(nil)

// SlidingWindow is an in-memory per-identifier rate limiter: at most max
// events per identifier within the trailing window. Good enough for a
// single-instance chat server; a multi-instance deployment would move this
// to a shared store.
type SlidingWindow struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

// SlidingWindowOption configures a SlidingWindow.
type SlidingWindowOption func(*SlidingWindow)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) SlidingWindowOption {
	return func(s *SlidingWindow) { s.now = now }
}

// NewSlidingWindow builds a limiter allowing max events per window.
// max <= 0 disables limiting (everything is allowed).
func NewSlidingWindow(window time.Duration, max int, opts ...SlidingWindowOption) *SlidingWindow {
	s := &SlidingWindow{
		window: window,
		max:    max,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records an event for identifier and reports whether it fits the
// window. Denied events are not recorded, so a flooding client does not
// extend its own penalty.
func (s *SlidingWindow) Allow(identifier string) bool {
	if s.max <= 0 {
		return true
	}

	now := s.now()
	cutoff := now.Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.hits[identifier][:0]
	for _, t := range s.hits[identifier] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= s.max {
		s.hits[identifier] = recent
		return false
	}

	s.hits[identifier] = append(recent, now)
	return true
}

// Prune drops identifiers with no events inside the window. Call
// periodically on long-running servers to bound memory.
func (s *SlidingWindow) Prune() {
	cutoff := s.now().Add(-s.window)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, times := range s.hits {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(s.hits, id)
		}
	}
}
