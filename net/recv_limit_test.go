package net

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRecvLimiterDropsOverBurst(t *testing.T) {
	// 1 rps with burst 2: the first two records pass, the third is dropped.
	l := NewTokenRecvLimiter(1, 2)
	assert.True(t, l.Admit())
	assert.True(t, l.Admit())
	assert.False(t, l.Admit())
}

func TestTokenRecvLimiterReload(t *testing.T) {
	l := NewTokenRecvLimiter(1, 1)
	assert.True(t, l.Admit())
	assert.False(t, l.Admit())

	l.Reload(1000, 100)
	assert.True(t, l.Admit())
}

func TestFunnelRecvLimiterNeverDrops(t *testing.T) {
	l := NewFunnelRecvLimiter(1000)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Admit())
	}
}

func TestFunnelRecvLimiterPaces(t *testing.T) {
	l := NewFunnelRecvLimiter(100)
	start := time.Now()
	for i := 0; i < 10; i++ {
		l.Admit()
	}
	// 10 admits at 100 rps take roughly 90ms of pacing.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRecvLimiterDropsKeepRecordOutOfSnapshot(t *testing.T) {
	ch := &captureChannel{}
	b := NewBridge(RoleHost, ch, NewStaticDirectory(),
		WithRecvLimiter(NewTokenRecvLimiter(1, 2)))

	p := NewPayload()
	p.Append("pos", Tuple{1})
	p.Append("pos", Tuple{2})
	p.Append("pos", Tuple{3})
	ch.recv("p1", p)

	b.Step()
	snap := b.Snapshot()
	require.Len(t, snap, 2, "over-burst record dropped before queueing")
	assert.Equal(t, Tuple{1}, snap[0].Data)
	assert.Equal(t, Tuple{2}, snap[1].Data)
}
