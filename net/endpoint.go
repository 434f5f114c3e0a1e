// Package net implements the per-tick packet bridge at the heart of the ticknet
// framework. It batches all packets queued within one simulation tick into a
// single aggregated payload per destination, and exposes the tick's incoming
// packets as a filterable read-only snapshot for application logic.
package net

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Endpoint identifies one addressable remote participant on a channel.
// Endpoint ids are opaque to the bridge; they are assigned by the transport
// (connection id, session id, consul service instance id, ...).
type Endpoint string

// HostEndpoint is the sentinel endpoint representing the host/server side of a
// channel. It appears as the sender of records delivered host-to-peer and as
// the resolved destination of RecipientSpec values built with ToHost.
const HostEndpoint Endpoint = "@host"

// Role fixes a bridge's addressing rules at construction time.
// There is no ambient role detection: the process decides once, at startup,
// whether it is the host or a peer of a channel.
type Role uint8

const (
	// RoleHost is the authoritative side of a channel. It may address any
	// currently known endpoint, sets of endpoints, or broadcast to all.
	RoleHost Role = iota + 1

	// RolePeer is a client side of a channel. Peers may only address the host;
	// peer-to-peer packets must be relayed by host application logic.
	RolePeer
)

// String returns the role name for logging and error messages.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePeer:
		return "peer"
	default:
		return "unknown"
	}
}

// RecipientKind discriminates the variants of a RecipientSpec.
type RecipientKind uint8

const (
	// RecipientNone marks the zero RecipientSpec, which addresses nothing and
	// never validates.
	RecipientNone RecipientKind = iota

	// RecipientHost addresses the host endpoint of the channel.
	RecipientHost

	// RecipientSingle addresses exactly one peer endpoint.
	RecipientSingle

	// RecipientSet addresses a fixed set of peer endpoints.
	RecipientSet

	// RecipientBroadcast addresses every endpoint known to the directory.
	// Resolution happens at flush time, so peers joining between enqueue and
	// the tick boundary are still covered.
	RecipientBroadcast
)

// RecipientSpec is the tagged destination variant attached to every outgoing
// packet: host, one endpoint, a set of endpoints, or broadcast. The zero value
// is RecipientNone and fails validation, which keeps accidentally blank
// destinations out of the queue.
type RecipientSpec struct {
	kind   RecipientKind
	single Endpoint
	set    []Endpoint
}

// ToHost builds a RecipientSpec addressing the host endpoint.
func ToHost() RecipientSpec {
	return RecipientSpec{kind: RecipientHost}
}

// ToEndpoint builds a RecipientSpec addressing a single peer endpoint.
func ToEndpoint(ep Endpoint) RecipientSpec {
	return RecipientSpec{kind: RecipientSingle, single: ep}
}

// ToEndpoints builds a RecipientSpec addressing a fixed set of peer endpoints.
// The set is copied and de-duplicated; order of the input is preserved for the
// first occurrence of each endpoint.
func ToEndpoints(eps ...Endpoint) RecipientSpec {
	set := make([]Endpoint, 0, len(eps))
	seen := make(map[Endpoint]struct{}, len(eps))
	for _, ep := range eps {
		if _, ok := seen[ep]; ok {
			continue
		}
		seen[ep] = struct{}{}
		set = append(set, ep)
	}
	return RecipientSpec{kind: RecipientSet, set: set}
}

// Broadcast builds a RecipientSpec addressing all endpoints known to the
// bridge's directory at flush time.
func Broadcast() RecipientSpec {
	return RecipientSpec{kind: RecipientBroadcast}
}

// Kind returns the variant tag of the spec.
func (r RecipientSpec) Kind() RecipientKind { return r.kind }

// Peers returns the peer endpoints named by the spec. For RecipientHost and
// RecipientBroadcast the slice is empty; broadcast resolution needs a
// directory and happens inside the bridge at flush time.
func (r RecipientSpec) Peers() []Endpoint {
	switch r.kind {
	case RecipientSingle:
		return []Endpoint{r.single}
	case RecipientSet:
		out := make([]Endpoint, len(r.set))
		copy(out, r.set)
		return out
	default:
		return nil
	}
}

// String renders the spec for logs and error messages.
func (r RecipientSpec) String() string {
	switch r.kind {
	case RecipientHost:
		return "host"
	case RecipientSingle:
		return fmt.Sprintf("endpoint(%s)", r.single)
	case RecipientSet:
		parts := make([]string, len(r.set))
		for i, ep := range r.set {
			parts[i] = string(ep)
		}
		return fmt.Sprintf("set(%s)", strings.Join(parts, ","))
	case RecipientBroadcast:
		return "broadcast"
	default:
		return "none"
	}
}

// EndpointDirectory enumerates the currently connected remote endpoints of a
// channel. The bridge consults it to validate explicit recipients and to
// resolve broadcast recipients at flush time.
type EndpointDirectory interface {
	// Endpoints returns the current endpoint set. The returned slice is owned
	// by the caller.
	Endpoints() []Endpoint

	// Contains reports whether ep is currently a valid endpoint.
	Contains(ep Endpoint) bool
}

// StaticDirectory is an in-process EndpointDirectory maintained by Join/Leave
// calls. Channel implementations that track their own connections (MemNetwork,
// WSHost) keep one of these up to date; tests drive it directly.
type StaticDirectory struct {
	mu  sync.RWMutex
	set map[Endpoint]struct{}
}

// NewStaticDirectory creates a directory pre-populated with the given endpoints.
func NewStaticDirectory(eps ...Endpoint) *StaticDirectory {
	d := &StaticDirectory{set: make(map[Endpoint]struct{}, len(eps))}
	for _, ep := range eps {
		d.set[ep] = struct{}{}
	}
	return d
}

// Join adds an endpoint to the directory. Adding an existing endpoint is a no-op.
func (d *StaticDirectory) Join(ep Endpoint) {
	d.mu.Lock()
	d.set[ep] = struct{}{}
	d.mu.Unlock()
}

// Leave removes an endpoint from the directory.
func (d *StaticDirectory) Leave(ep Endpoint) {
	d.mu.Lock()
	delete(d.set, ep)
	d.mu.Unlock()
}

// Endpoints returns the current endpoint set in stable (sorted) order.
func (d *StaticDirectory) Endpoints() []Endpoint {
	d.mu.RLock()
	out := make([]Endpoint, 0, len(d.set))
	for ep := range d.set {
		out = append(out, ep)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether ep is currently in the directory.
func (d *StaticDirectory) Contains(ep Endpoint) bool {
	d.mu.RLock()
	_, ok := d.set[ep]
	d.mu.RUnlock()
	return ok
}
