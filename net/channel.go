package net

import (
	"fmt"
	"sync"
)

// ReceiveFunc is the callback a channel invokes for every payload delivered to
// the local side. sender is the remote endpoint the payload came from, or
// HostEndpoint when the host sent it. Channels may invoke the callback from
// their own goroutines; the bridge serializes behind its own lock.
type ReceiveFunc func(sender Endpoint, p *Payload)

// Channel is the bidirectional transport primitive a bridge is bound to.
// It is deliberately narrow: fire-and-forget sends keyed by destination plus a
// receive registration point. Delivery guarantees, retries and ordering across
// connections are the channel implementation's business, not the bridge's.
type Channel interface {
	// SendToHost delivers the payload to the host side of the channel.
	SendToHost(p *Payload) error

	// SendToPeer delivers the payload to one peer endpoint.
	SendToPeer(dst Endpoint, p *Payload) error

	// OnReceive registers the delivery callback. Registering replaces any
	// previous callback; a bridge owns its channel's receive path.
	OnReceive(fn ReceiveFunc)

	// Close releases the channel. Sends after Close return ErrChannelClosed.
	Close() error
}

// ChannelFactory creates the channel for a key on first open.
type ChannelFactory func(key string) (Channel, error)

// ChannelKey derives the registry sharing key from a Net configuration. Net
// instances configured with the same channel class and tick event share one
// underlying channel.
func ChannelKey(channel, event string) string {
	return channel + ":" + event
}

// ChannelRegistry hands out channels by key, creating each key's channel once
// and returning the same instance for every subsequent open. This is the
// sharing point for Net facades bound to the same (channel, event) pair.
type ChannelRegistry struct {
	mu       sync.Mutex
	factory  ChannelFactory
	channels map[string]Channel
}

// NewChannelRegistry creates a registry backed by the given factory.
func NewChannelRegistry(factory ChannelFactory) *ChannelRegistry {
	return &ChannelRegistry{
		factory:  factory,
		channels: make(map[string]Channel),
	}
}

// Open returns the channel for key, creating it on first use.
func (r *ChannelRegistry) Open(key string) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[key]; ok {
		return ch, nil
	}
	if r.factory == nil {
		return nil, fmt.Errorf("ticknet: no channel factory for key %q", key)
	}
	ch, err := r.factory(key)
	if err != nil {
		return nil, fmt.Errorf("open channel %q: %w", key, err)
	}
	r.channels[key] = ch
	return ch, nil
}

// Close closes every channel the registry created. The first error is
// returned; remaining channels are still closed.
func (r *ChannelRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for key, ch := range r.channels {
		if err := ch.Close(); err != nil && first == nil {
			first = fmt.Errorf("close channel %q: %w", key, err)
		}
		delete(r.channels, key)
	}
	return first
}
