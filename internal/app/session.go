package app

import (
	"context"
	"sync"
	"time"

	"github.com/lucasbarrios/leadline/internal/capture"
	"github.com/lucasbarrios/leadline/internal/observe"
	"github.com/lucasbarrios/leadline/pkg/chat"
)

// Session is the per-conversation state the pipeline threads between turns:
// the capture state, the chat transcript, and a mutex serialising turns for
// this conversation only. Different sessions never contend.
type Session struct {
	ID string

	mu         sync.Mutex
	state      capture.State
	transcript []chat.Turn
	lastSeen   time.Time
}

// Snapshot returns a copy of the session's current capture state.
func (s *Session) Snapshot() capture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sessions is the in-memory session registry. Safe for concurrent use; the
// registry lock is held only for map access, never across a turn.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]*Session
	now     func() time.Time
	metrics *observe.Metrics
}

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithSessionsClock overrides the wall clock, for tests.
func WithSessionsClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) { s.now = now }
}

// WithSessionsMetrics sets the metrics instance feeding the
// active-conversations gauge.
func WithSessionsMetrics(m *observe.Metrics) SessionsOption {
	return func(s *Sessions) { s.metrics = m }
}

// NewSessions builds an empty registry.
func NewSessions(opts ...SessionsOption) *Sessions {
	s := &Sessions{
		byID: make(map[string]*Session),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Get returns the session for id, creating it on first use.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byID[id]; ok {
		return sess
	}
	sess := &Session{
		ID:       id,
		state:    capture.NewState(),
		lastSeen: s.now(),
	}
	s.byID[id] = sess
	s.metrics.ActiveConversations.Add(context.Background(), 1)
	return sess
}

// Len returns the number of tracked sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Evict drops sessions idle for longer than maxIdle and returns how many
// were removed. Sessions mid-capture are kept regardless: an abandoned
// half-filled form is still worth more than a fresh one.
func (s *Sessions) Evict(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.byID {
		sess.mu.Lock()
		stale := sess.lastSeen.Before(cutoff) && !sess.state.Step.Active()
		sess.mu.Unlock()
		if stale {
			delete(s.byID, id)
			n++
		}
	}
	if n > 0 {
		s.metrics.ActiveConversations.Add(context.Background(), -int64(n))
	}
	return n
}
