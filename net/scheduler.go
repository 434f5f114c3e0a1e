package net

import (
	"fmt"
	"sync"
)

// Phase orders hooks within one tick of an event. All PhaseUpdate hooks run
// before any PhaseFlush hook, so a bridge's Step sees every send the
// application issued during the tick and every query runs against a stable
// snapshot.
type Phase uint8

const (
	// PhaseUpdate is where application logic runs: reading queries, issuing
	// sends, rewriting recipients.
	PhaseUpdate Phase = iota

	// PhaseFlush is where bridges step. Net.Register installs its hook here.
	PhaseFlush
)

// TickFunc is one scheduled per-tick hook.
type TickFunc func()

// CancelFunc removes a scheduled hook. Safe to call more than once.
type CancelFunc func()

// TickScheduler drives bridges from an external simulation loop. The loop
// owner invokes one tick per named event; the scheduler runs that event's
// hooks in phase order.
type TickScheduler interface {
	// Schedule installs fn to run once per tick of event, in the given phase.
	Schedule(event string, phase Phase, fn TickFunc) (CancelFunc, error)
}

// LoopScheduler is an in-process TickScheduler driven by Advance. It is the
// reference implementation used by tests and local simulation loops; real
// engines typically adapt their own frame callback to the TickScheduler
// interface instead.
type LoopScheduler struct {
	mu     sync.Mutex
	nextID int
	hooks  map[string][]loopHook
}

type loopHook struct {
	id    int
	phase Phase
	fn    TickFunc
}

// NewLoopScheduler creates an empty scheduler.
func NewLoopScheduler() *LoopScheduler {
	return &LoopScheduler{hooks: make(map[string][]loopHook)}
}

// Schedule implements TickScheduler.
func (s *LoopScheduler) Schedule(event string, phase Phase, fn TickFunc) (CancelFunc, error) {
	if event == "" {
		return nil, fmt.Errorf("ticknet: empty tick event name")
	}
	if fn == nil {
		return nil, fmt.Errorf("ticknet: nil tick func")
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.hooks[event] = append(s.hooks[event], loopHook{id: id, phase: phase, fn: fn})
	s.mu.Unlock()

	return func() { s.remove(event, id) }, nil
}

// Advance runs one tick of event: every PhaseUpdate hook in registration
// order, then every PhaseFlush hook in registration order.
func (s *LoopScheduler) Advance(event string) {
	s.mu.Lock()
	hooks := make([]loopHook, len(s.hooks[event]))
	copy(hooks, s.hooks[event])
	s.mu.Unlock()

	for _, h := range hooks {
		if h.phase == PhaseUpdate {
			h.fn()
		}
	}
	for _, h := range hooks {
		if h.phase == PhaseFlush {
			h.fn()
		}
	}
}

func (s *LoopScheduler) remove(event string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hooks := s.hooks[event]
	for i, h := range hooks {
		if h.id == id {
			s.hooks[event] = append(hooks[:i], hooks[i+1:]...)
			return
		}
	}
}
