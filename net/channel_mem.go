package net

import (
	"fmt"
	"sync"
)

// MemNetwork is an in-process transport: one host side and any number of peer
// sides wired through a shared table, delivering payloads synchronously. It
// backs tests and single-process simulations where host and peers live in one
// binary, and it keeps a StaticDirectory in step with joins and leaves so
// bridges get endpoint validation for free.
type MemNetwork struct {
	mu     sync.Mutex
	dir    *StaticDirectory
	host   *MemChannel
	peers  map[Endpoint]*MemChannel
	nextID int
}

// NewMemNetwork creates an empty network.
func NewMemNetwork() *MemNetwork {
	return &MemNetwork{
		dir:   NewStaticDirectory(),
		peers: make(map[Endpoint]*MemChannel),
	}
}

// Directory returns the directory tracking currently joined peers.
func (n *MemNetwork) Directory() *StaticDirectory { return n.dir }

// Host returns the host side of the network, creating it on first call.
func (n *MemNetwork) Host() *MemChannel {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.host == nil {
		n.host = &MemChannel{net: n, id: HostEndpoint}
	}
	return n.host
}

// Join attaches a peer side under the given id; an empty id gets a generated
// one. The peer becomes visible in the directory immediately.
func (n *MemNetwork) Join(id Endpoint) *MemChannel {
	n.mu.Lock()
	defer n.mu.Unlock()

	if id == "" {
		n.nextID++
		id = Endpoint(fmt.Sprintf("mem-%d", n.nextID))
	}
	ch := &MemChannel{net: n, id: id}
	n.peers[id] = ch
	n.dir.Join(id)
	return ch
}

func (n *MemNetwork) lookupPeer(id Endpoint) (*MemChannel, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.peers[id]
	return ch, ok
}

func (n *MemNetwork) detach(ch *MemChannel) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch == n.host {
		n.host = nil
		return
	}
	if n.peers[ch.id] == ch {
		delete(n.peers, ch.id)
		n.dir.Leave(ch.id)
	}
}

// MemChannel is one side of a MemNetwork. The host side may send to any
// joined peer; peer sides may only send to the host, mirroring the bridge's
// addressing rules at the transport level.
type MemChannel struct {
	net *MemNetwork
	id  Endpoint

	mu     sync.Mutex
	recv   ReceiveFunc
	closed bool
}

// ID returns this side's endpoint id (HostEndpoint for the host side).
func (c *MemChannel) ID() Endpoint { return c.id }

// SendToHost implements Channel. From a peer it delivers to the host side;
// from the host it loops back to itself, which is what a host-role bridge
// addressing ToHost expects.
func (c *MemChannel) SendToHost(p *Payload) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if c.id == HostEndpoint {
		c.deliver(HostEndpoint, p)
		return nil
	}
	host := c.net.Host()
	host.deliver(c.id, p)
	return nil
}

// SendToPeer implements Channel. Only the host side may address peers.
func (c *MemChannel) SendToPeer(dst Endpoint, p *Payload) error {
	if c.isClosed() {
		return ErrChannelClosed
	}
	if c.id != HostEndpoint {
		return fmt.Errorf("%w: peer channel cannot send to %s", ErrPeerAddressing, dst)
	}
	peer, ok := c.net.lookupPeer(dst)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, dst)
	}
	peer.deliver(HostEndpoint, p)
	return nil
}

// OnReceive implements Channel.
func (c *MemChannel) OnReceive(fn ReceiveFunc) {
	c.mu.Lock()
	c.recv = fn
	c.mu.Unlock()
}

// Close implements Channel, detaching this side from the network.
func (c *MemChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.net.detach(c)
	return nil
}

func (c *MemChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver hands a payload copy to this side's receive callback. The copy
// keeps sender and receiver from aliasing queue storage across the in-process
// boundary the way a real wire never would.
func (c *MemChannel) deliver(sender Endpoint, p *Payload) {
	c.mu.Lock()
	fn := c.recv
	closed := c.closed
	c.mu.Unlock()

	if closed || fn == nil {
		return
	}
	fn(sender, p.Clone())
}
