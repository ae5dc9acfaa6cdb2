package tracker

import (
	"context"
	"sync"

	"github.com/clipdeck/api/internal/model"
)

// Slot holds at most one session for a single UI element. Tracking a new
// job fully stops the previous session first.
type Slot struct {
	tracker *Tracker

	mu      sync.Mutex
	current *Session
}

func NewSlot(t *Tracker) *Slot {
	return &Slot{tracker: t}
}

// Track stops the current session, if any, and starts a fresh one with
// attempts reset to zero.
func (s *Slot) Track(ctx context.Context, jobID string, provider model.Provider, opts Options, cb Callbacks) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Stop()
	}
	s.current = s.tracker.Track(ctx, jobID, provider, opts, cb)
	return s.current
}

// Current returns the active or last session, or nil.
func (s *Slot) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stop stops the current session.
func (s *Slot) Stop() {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}
