package client

import (
	"fmt"
	"sync"
)

// SessionState tracks where a session is in its lifecycle. Transitions are
// forward-only: once a state is left it is never re-entered.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateInitializing
	StateInitialized
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// session guards the lifecycle state. It is an explicit per-client value;
// nothing about the lifecycle lives in package state.
type session struct {
	mu    sync.Mutex
	state SessionState
}

func (s *session) current() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// advance moves the session forward to the given state. Re-entering the
// current state is a no-op (this is what makes Close idempotent); moving
// backward is a protocol violation.
func (s *session) advance(to SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if to == s.state {
		return nil
	}
	if to < s.state {
		return &ProtocolViolationError{
			Reason: fmt.Sprintf("cannot transition session from %s back to %s", s.state, to),
		}
	}
	s.state = to
	return nil
}

// require fails unless the session is exactly in want. It runs before any
// bytes touch the transport, so a premature request sends nothing.
func (s *session) require(want SessionState, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != want {
		pv := &ProtocolViolationError{
			Reason: fmt.Sprintf("%s requires an %s session, session is %s", op, want, s.state),
		}
		if s.state == StateClosed {
			pv.Cause = ErrSessionClosed
		}
		return pv
	}
	return nil
}
