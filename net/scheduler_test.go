package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopSchedulerPhaseOrdering(t *testing.T) {
	s := NewLoopScheduler()
	var calls []string

	// Flush registered first, update second: phase still wins over
	// registration order.
	_, err := s.Schedule("tick", PhaseFlush, func() { calls = append(calls, "flush") })
	require.NoError(t, err)
	_, err = s.Schedule("tick", PhaseUpdate, func() { calls = append(calls, "update1") })
	require.NoError(t, err)
	_, err = s.Schedule("tick", PhaseUpdate, func() { calls = append(calls, "update2") })
	require.NoError(t, err)

	s.Advance("tick")
	assert.Equal(t, []string{"update1", "update2", "flush"}, calls)
}

func TestLoopSchedulerEventsAreIndependent(t *testing.T) {
	s := NewLoopScheduler()
	count := 0
	_, err := s.Schedule("combat", PhaseUpdate, func() { count++ })
	require.NoError(t, err)

	s.Advance("lobby")
	assert.Equal(t, 0, count)
	s.Advance("combat")
	assert.Equal(t, 1, count)
}

func TestLoopSchedulerCancel(t *testing.T) {
	s := NewLoopScheduler()
	count := 0
	cancel, err := s.Schedule("tick", PhaseUpdate, func() { count++ })
	require.NoError(t, err)

	s.Advance("tick")
	cancel()
	cancel() // safe to call twice
	s.Advance("tick")
	assert.Equal(t, 1, count)
}

func TestLoopSchedulerRejectsBadArgs(t *testing.T) {
	s := NewLoopScheduler()

	_, err := s.Schedule("", PhaseUpdate, func() {})
	assert.Error(t, err)
	_, err = s.Schedule("tick", PhaseUpdate, nil)
	assert.Error(t, err)
}
