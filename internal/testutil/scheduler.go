// Package testutil provides deterministic stand-ins for the time-driven
// pieces of the workflow engine.
package testutil

import (
	"context"
	"sync"
	"time"
)

// ManualScheduler captures scheduled continuations instead of running them,
// so a test controls exactly when an auto-progress continuation fires,
// including after auto-progress has been disabled, to exercise the
// stale-scheduling re-check.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc records fn without running it.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, fn)
	s.delays = append(s.delays, d)
}

// Pending returns the number of unfired continuations.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Delays returns the recorded delays in schedule order.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// FireNext runs the oldest pending continuation. Returns false when none
// are pending.
func (s *ManualScheduler) FireNext() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()
	fn()
	return true
}

// FireAll runs pending continuations until none remain, including ones
// scheduled while firing.
func (s *ManualScheduler) FireAll() {
	for s.FireNext() {
	}
}

// NoSleep is a sleeper that returns immediately, for wiring into safeop
// runners and coordinators under test.
func NoSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
