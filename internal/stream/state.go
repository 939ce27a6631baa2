// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/metrics"
	"github.com/ManuGH/loopcast/internal/relay"
	"github.com/ManuGH/loopcast/internal/source"
)

// Session is the record of the one relay that may exist at a time.
type Session struct {
	ID              string
	Destination     string
	StreamKey       string
	SourceReference string
	StartedAt       *time.Time
	Process         relay.Process
	Source          source.Resolved

	generation uint64
	cancel     context.CancelFunc
}

// Status is a read-only snapshot of the relay. It never carries the stream key.
type Status struct {
	Active              bool       `json:"active"`
	Phase               Phase      `json:"phase"`
	SessionID           string     `json:"sessionId,omitempty"`
	DestinationEndpoint string     `json:"destinationEndpoint"`
	SourceReference     string     `json:"sourceReference"`
	SourceKind          string     `json:"sourceKind,omitempty"`
	StartedAt           *time.Time `json:"startedAt"`
}

// Observer receives every status change. It is called with the state lock
// held and must not block or call back into State.
type Observer func(Status)

// State is the lock-guarded relay session handle. All check-and-set
// operations happen under one mutex.
type State struct {
	mu         sync.Mutex
	phase      Phase
	session    *Session
	generation uint64

	observers map[int]Observer
	nextObs   int
	logger    zerolog.Logger
}

// NewState returns an idle state.
func NewState() *State {
	return &State{
		phase:     PhaseIdle,
		observers: make(map[int]Observer),
		logger:    log.WithComponent("stream"),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *State) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current status.
func (s *State) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *State) statusLocked() Status {
	st := Status{
		Active: s.phase == PhaseActive,
		Phase:  s.phase,
	}
	if sess := s.session; sess != nil {
		st.SessionID = sess.ID
		st.DestinationEndpoint = sess.Destination
		st.SourceReference = sess.SourceReference
		st.SourceKind = string(sess.Source.Kind)
		if sess.StartedAt != nil {
			t := *sess.StartedAt
			st.StartedAt = &t
		}
	}
	return st
}

// setPhaseLocked moves to next and notifies observers. Illegal edges are
// refused and logged.
func (s *State) setPhaseLocked(next Phase) bool {
	prev := s.phase
	if prev == next {
		return true
	}
	if !allowed(prev, next) {
		s.logger.Error().
			Str(log.FieldOldState, string(prev)).
			Str(log.FieldNewState, string(next)).
			Msg("illegal stream transition refused")
		return false
	}
	s.phase = next
	metrics.IncPhaseTransition(string(prev), string(next))
	metrics.SetStreamActive(next == PhaseActive)
	s.logger.Debug().
		Str(log.FieldEvent, "stream.transition").
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(next)).
		Uint64(log.FieldGeneration, s.generation).
		Msg("stream phase changed")

	st := s.statusLocked()
	for _, fn := range s.observers {
		fn(st)
	}
	return true
}

// reserve claims the idle state for a new session.
func (s *State) reserve(sess *Session) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return 0, ErrAlreadyStreaming
	}
	s.generation++
	sess.generation = s.generation
	s.session = sess
	s.setPhaseLocked(PhaseStarting)
	return s.generation, nil
}

// commit promotes a reservation to active. It fails when a stop has
// overtaken the start.
func (s *State) commit(gen uint64, proc relay.Process, res source.Resolved, startedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.phase != PhaseStarting || s.session == nil {
		return false
	}
	s.session.Process = proc
	s.session.Source = res
	s.session.StartedAt = &startedAt
	return s.setPhaseLocked(PhaseActive)
}

// release abandons a reservation after a failed start.
func (s *State) release(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.phase != PhaseStarting {
		return false
	}
	s.session = nil
	return s.setPhaseLocked(PhaseIdle)
}

// current reports whether gen is still the live generation.
func (s *State) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// beginStop moves a starting or active session to stopping and hands it to
// the caller. The generation bump invalidates the pending start and watcher.
func (s *State) beginStop() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseStarting && s.phase != PhaseActive {
		return nil, ErrNotStreaming
	}
	s.generation++
	sess := s.session
	s.setPhaseLocked(PhaseStopping)
	return sess, nil
}

// finishStop clears the session after a stop.
func (s *State) finishStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseStopping {
		return
	}
	s.session = nil
	s.setPhaseLocked(PhaseIdle)
}

// clearIfCurrent ends an active session whose process exited on its own.
func (s *State) clearIfCurrent(gen uint64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.phase != PhaseActive {
		return nil, false
	}
	sess := s.session
	s.session = nil
	s.setPhaseLocked(PhaseIdle)
	return sess, true
}
