package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAdvancesForward(t *testing.T) {
	s := &session{}
	assert.Equal(t, StateUninitialized, s.current())

	require.NoError(t, s.advance(StateInitializing))
	require.NoError(t, s.advance(StateInitialized))
	require.NoError(t, s.advance(StateClosed))
	assert.Equal(t, StateClosed, s.current())
}

func TestSessionRejectsBackwardTransitions(t *testing.T) {
	s := &session{}
	require.NoError(t, s.advance(StateInitialized))

	err := s.advance(StateInitializing)
	require.Error(t, err)
	assert.True(t, IsProtocolViolation(err))
	assert.Equal(t, StateInitialized, s.current())
}

func TestSessionReenteringStateIsNoOp(t *testing.T) {
	s := &session{}
	require.NoError(t, s.advance(StateClosed))
	require.NoError(t, s.advance(StateClosed))
}

func TestSessionCanSkipForward(t *testing.T) {
	// Uninitialized straight to Closed: closing a never-used client.
	s := &session{}
	require.NoError(t, s.advance(StateClosed))
	assert.Equal(t, StateClosed, s.current())
}

func TestSessionRequire(t *testing.T) {
	s := &session{}
	err := s.require(StateInitialized, "tools/list")
	require.Error(t, err)
	assert.True(t, IsProtocolViolation(err))
	assert.Contains(t, err.Error(), "tools/list")

	require.NoError(t, s.advance(StateInitialized))
	assert.NoError(t, s.require(StateInitialized, "tools/list"))
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "closed", StateClosed.String())
}
