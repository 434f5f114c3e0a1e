package net

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecvFilterChainOrder(t *testing.T) {
	var calls []string
	mk := func(name string) RecvFilter {
		return func(d *RecvDelivery, next RecvFilterHandleFunc) error {
			calls = append(calls, name)
			return next(d)
		}
	}

	chain := RecvFilterChain{mk("first"), mk("second")}
	err := chain.Handle(&RecvDelivery{}, func(*RecvDelivery) error {
		calls = append(calls, "handler")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "handler"}, calls)
}

func TestRecvFilterChainEmptyCallsHandler(t *testing.T) {
	called := false
	err := RecvFilterChain{}.Handle(&RecvDelivery{}, func(*RecvDelivery) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRecvFilterShortCircuits(t *testing.T) {
	sentinel := errors.New("rejected")
	handled := false

	chain := RecvFilterChain{
		func(d *RecvDelivery, next RecvFilterHandleFunc) error {
			return sentinel
		},
		func(d *RecvDelivery, next RecvFilterHandleFunc) error {
			t.Fatal("second filter must not run")
			return nil
		},
	}
	err := chain.Handle(&RecvDelivery{}, func(*RecvDelivery) error {
		handled = true
		return nil
	})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, handled)
}

func TestRecvFilterMayRewriteRecord(t *testing.T) {
	rename := func(d *RecvDelivery, next RecvFilterHandleFunc) error {
		d.Record.Identifier = "renamed"
		return next(d)
	}

	ch := &captureChannel{}
	b := NewBridge(RoleHost, ch, NewStaticDirectory(), WithRecvFilter(rename))

	p := NewPayload()
	p.Append("orig", Tuple{1})
	ch.recv("p1", p)
	b.Step()

	snap := b.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "renamed", snap[0].Identifier)
}
