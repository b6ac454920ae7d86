package airplay2

import (
	"sync"
	"sync/atomic"
)

// SessionState is a session's position in the dispatcher's state machine.
// Legacy and modern dialects share the same state enum; the gating table in
// dispatch.go decides which methods/endpoints are valid in each.
type SessionState int

const (
	StateInit SessionState = iota
	StateOptionsReceived
	StateAnnounced     // legacy only: after ANNOUNCE
	StateSetup         // legacy: after SETUP; modern: after SetupPhase2
	StateSetupPhase1   // modern only: after SETUP phase 1
	StatePaired        // modern only: after pair-verify completes
	StateStreaming
	StatePaused
	StateTornDown
)

func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOptionsReceived:
		return "options-received"
	case StateAnnounced:
		return "announced"
	case StateSetup:
		return "setup"
	case StateSetupPhase1:
		return "setup-phase-1"
	case StatePaired:
		return "paired"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// Dialect is the wire dialect a session has locked onto.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectLegacy
	DialectModern
)

// Session holds the mutable state machine for one control-channel
// connection. State transitions are serialized under mu; the "is
// streaming" hot-path read used by the audio pipeline is exposed through an
// atomic instead.
type Session struct {
	mu      sync.Mutex
	state   SessionState
	dialect Dialect

	streaming atomic.Bool
}

// NewSession creates a Session in StateInit with no dialect locked.
func NewSession() *Session {
	return &Session{state: StateInit}
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dialect returns the locked dialect, or DialectUnknown before detection.
func (s *Session) Dialect() Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

// IsStreaming is the lock-free hot-path check the audio pipeline polls.
func (s *Session) IsStreaming() bool {
	return s.streaming.Load()
}

// LockDialect sets the session's dialect if unset, and rejects a
// conflicting dialect on an already-locked session.
func (s *Session) LockDialect(d Dialect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dialect == DialectUnknown {
		s.dialect = d
		return true
	}
	return s.dialect == d
}

// Transition moves the session to next, updating the streaming atomic to
// match.
func (s *Session) Transition(next SessionState) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	switch next {
	case StateStreaming:
		s.streaming.Store(true)
	case StatePaused, StateTornDown, StateInit:
		s.streaming.Store(false)
	}
}
