package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemNetworkJoinUpdatesDirectory(t *testing.T) {
	n := NewMemNetwork()
	assert.Empty(t, n.Directory().Endpoints())

	p := n.Join("p1")
	assert.Equal(t, Endpoint("p1"), p.ID())
	assert.True(t, n.Directory().Contains("p1"))

	anon := n.Join("")
	assert.NotEmpty(t, anon.ID(), "empty id gets a generated one")

	require.NoError(t, p.Close())
	assert.False(t, n.Directory().Contains("p1"))
}

func TestMemChannelPeerToHost(t *testing.T) {
	n := NewMemNetwork()
	host := n.Host()
	peer := n.Join("p1")

	var gotSender Endpoint
	var gotPayload *Payload
	host.OnReceive(func(sender Endpoint, p *Payload) {
		gotSender = sender
		gotPayload = p
	})

	p := NewPayload()
	p.Append("pos", Tuple{1})
	require.NoError(t, peer.SendToHost(p))

	assert.Equal(t, Endpoint("p1"), gotSender)
	require.NotNil(t, gotPayload)
	assert.Equal(t, Tuple{1}, gotPayload.Tuples("pos")[0])

	// Delivery is a copy: mutating the sent payload afterwards is invisible.
	p.Append("pos", Tuple{2})
	assert.Len(t, gotPayload.Tuples("pos"), 1)
}

func TestMemChannelHostToPeer(t *testing.T) {
	n := NewMemNetwork()
	host := n.Host()
	peer := n.Join("p1")

	var gotSender Endpoint
	peer.OnReceive(func(sender Endpoint, p *Payload) { gotSender = sender })

	p := NewPayload()
	p.Append("a", Tuple{"x"})
	require.NoError(t, host.SendToPeer("p1", p))
	assert.Equal(t, HostEndpoint, gotSender)

	assert.ErrorIs(t, host.SendToPeer("ghost", p), ErrUnknownEndpoint)
}

func TestMemChannelHostLoopback(t *testing.T) {
	n := NewMemNetwork()
	host := n.Host()

	var gotSender Endpoint
	host.OnReceive(func(sender Endpoint, p *Payload) { gotSender = sender })

	p := NewPayload()
	p.Append("a", Tuple{1})
	require.NoError(t, host.SendToHost(p))
	assert.Equal(t, HostEndpoint, gotSender)
}

func TestMemChannelPeerCannotSendToPeer(t *testing.T) {
	n := NewMemNetwork()
	peer := n.Join("p1")

	p := NewPayload()
	p.Append("a", Tuple{1})
	assert.ErrorIs(t, peer.SendToPeer("p2", p), ErrPeerAddressing)
}

func TestMemChannelClosedSendsFail(t *testing.T) {
	n := NewMemNetwork()
	peer := n.Join("p1")
	require.NoError(t, peer.Close())

	p := NewPayload()
	p.Append("a", Tuple{1})
	assert.ErrorIs(t, peer.SendToHost(p), ErrChannelClosed)
	assert.NoError(t, peer.Close(), "double close is a no-op")
}
