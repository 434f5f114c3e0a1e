package net

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lcx/ticknet/metrics"
)

// Bridge owns one channel's per-tick batching state: the outgoing queue
// accumulating packets between tick boundaries, the incoming queue filling
// from the channel's receive callback, and the snapshot stabilized from the
// incoming queue at the last Step.
//
// One Step per simulation tick is the whole contract. Between two Steps,
// EnqueueSend appends to the outgoing queue and the channel may deliver into
// the incoming queue any number of times; at the boundary, Step swaps the
// incoming queue into the snapshot and flushes the outgoing queue as one
// aggregated payload per distinct destination.
//
// The bridge holds a single mutex rather than relying on the host loop being
// single-threaded, because Go channel implementations deliver from their own
// read goroutines. Step issues channel sends outside the lock so a loopback
// delivery cannot deadlock against it.
type Bridge struct {
	role Role
	ch   Channel
	dir  EndpointDirectory
	log  *zap.Logger
	met  *metrics.BridgeMetrics

	mu           sync.Mutex
	outgoing     []outgoingEntry
	incoming     []IncomingRecord
	snapshot     []IncomingRecord
	nextToken    uint64
	generation   uint64
	sendBudget   int // max EnqueueSend per tick, 0 = unlimited
	sentThisTick int
	recvFilters  RecvFilterChain
}

// outgoingEntry pairs a queued packet with the opaque token its SendRequest
// holds. Tokens, not positions, survive the remove+append rewrite done by
// SendRequest.To.
type outgoingEntry struct {
	token uint64
	pkt   Packet
}

// BridgeOption configures optional bridge behavior.
type BridgeOption func(*Bridge)

// WithLogger attaches a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics attaches prometheus collectors. A nil value keeps the no-op sink.
func WithMetrics(m *metrics.BridgeMetrics) BridgeOption {
	return func(b *Bridge) { b.met = m }
}

// WithSendBudget caps EnqueueSend calls per tick; 0 means unlimited.
func WithSendBudget(n int) BridgeOption {
	return func(b *Bridge) { b.sendBudget = n }
}

// WithRecvFilter appends a filter to the receive chain, in registration order.
func WithRecvFilter(f RecvFilter) BridgeOption {
	return func(b *Bridge) { b.recvFilters = append(b.recvFilters, f) }
}

// WithRecvLimiter installs a receive limiter as a chain filter.
func WithRecvLimiter(l RecvLimiter) BridgeOption {
	return func(b *Bridge) {
		if l != nil {
			b.recvFilters = append(b.recvFilters, recvLimitFilter(l))
		}
	}
}

// NewBridge binds a bridge to a channel with a fixed role. The directory is
// required for host bridges (recipient validation, broadcast resolution) and
// ignored for peers. The bridge takes over the channel's receive callback.
func NewBridge(role Role, ch Channel, dir EndpointDirectory, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		role: role,
		ch:   ch,
		dir:  dir,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if ch != nil {
		ch.OnReceive(b.handleReceive)
	}
	return b
}

// Role returns the bridge's fixed role.
func (b *Bridge) Role() Role { return b.role }

// UseRecvFilter appends a filter to the receive chain after construction.
// Filters installed mid-tick apply to records delivered from then on.
func (b *Bridge) UseRecvFilter(f RecvFilter) {
	if f == nil {
		return
	}
	b.mu.Lock()
	b.recvFilters = append(b.recvFilters, f)
	b.mu.Unlock()
}

// SetSendBudget replaces the per-tick send budget; 0 means unlimited. Used by
// configuration hot reload. The counter for the current tick is kept.
func (b *Bridge) SetSendBudget(n int) {
	b.mu.Lock()
	b.sendBudget = n
	b.mu.Unlock()
}

// EnqueueSend validates and appends one packet to the outgoing queue,
// returning a SendRequest whose token addresses the packet until the next
// Step. On any validation failure nothing is enqueued and the error names the
// rejected condition.
func (b *Bridge) EnqueueSend(rcpt RecipientSpec, identifier string, data ...any) (*SendRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.validateLocked(rcpt, identifier); err != nil {
		b.met.EnqueueRejected(rejectReason(err))
		return nil, err
	}
	if b.sendBudget > 0 && b.sentThisTick >= b.sendBudget {
		b.met.EnqueueRejected("budget")
		return nil, fmt.Errorf("%w (budget %d)", ErrSendBudget, b.sendBudget)
	}
	b.sentThisTick++

	b.nextToken++
	token := b.nextToken
	b.outgoing = append(b.outgoing, outgoingEntry{
		token: token,
		pkt: Packet{
			Identifier: identifier,
			Recipient:  rcpt,
			Data:       Tuple(data).Clone(),
		},
	})
	b.met.PacketEnqueued()

	return &SendRequest{bridge: b, token: token, gen: b.generation}, nil
}

// validateLocked enforces the role addressing rules. Callers hold b.mu.
func (b *Bridge) validateLocked(rcpt RecipientSpec, identifier string) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}
	switch b.role {
	case RolePeer:
		if rcpt.Kind() != RecipientHost {
			return fmt.Errorf("%w: got %s", ErrPeerAddressing, rcpt)
		}
	case RoleHost:
		switch rcpt.Kind() {
		case RecipientNone:
			return ErrEmptyRecipient
		case RecipientSingle, RecipientSet:
			if b.dir == nil {
				return fmt.Errorf("%w: no endpoint directory", ErrUnknownEndpoint)
			}
			for _, ep := range rcpt.Peers() {
				if !b.dir.Contains(ep) {
					return fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep)
				}
			}
		}
	default:
		return fmt.Errorf("ticknet: bridge has no role")
	}
	return nil
}

// Step is the tick boundary. It stabilizes the incoming queue into a fresh
// snapshot, then drains the outgoing queue into one aggregated payload per
// distinct destination and issues exactly one channel send per destination.
// Transport failures are logged and counted, never retried; retry policy
// belongs to the channel.
func (b *Bridge) Step() {
	b.mu.Lock()

	// Phase 1: snapshot swap. Records delivered from here on belong to the
	// next tick.
	b.snapshot = b.incoming
	b.incoming = nil
	b.met.SnapshotSize(len(b.snapshot))

	// Phase 2: take the outgoing queue. SendRequests minted before this point
	// go stale with the generation bump.
	queue := b.outgoing
	b.outgoing = nil
	b.generation++
	b.sentThisTick = 0

	plan := b.buildFlushPlanLocked(queue)
	b.mu.Unlock()

	// Channel sends happen outside the lock: an in-process channel may
	// deliver synchronously back into this bridge's receive path.
	calls := 0
	for _, dst := range plan.order {
		calls++
		if err := b.ch.SendToPeer(dst, plan.peers[dst]); err != nil {
			b.met.TransportError()
			b.log.Error("send to peer failed",
				zap.String("endpoint", string(dst)), zap.Error(err))
		}
	}
	if plan.host != nil && !plan.host.Empty() {
		calls++
		if err := b.ch.SendToHost(plan.host); err != nil {
			b.met.TransportError()
			b.log.Error("send to host failed", zap.Error(err))
		}
	}
	b.met.TransportCalls(calls)
}

// flushPlan is one tick's grouped outgoing traffic: per-peer payloads in
// first-seen destination order plus at most one host payload.
type flushPlan struct {
	order []Endpoint
	peers map[Endpoint]*Payload
	host  *Payload
}

// buildFlushPlanLocked groups queued packets by resolved destination. A packet
// addressed to several peers is fanned out by appending an independent tuple
// copy into each destination's payload (Payload.Append copies), so payloads
// never alias each other. Callers hold b.mu.
func (b *Bridge) buildFlushPlanLocked(queue []outgoingEntry) flushPlan {
	plan := flushPlan{peers: make(map[Endpoint]*Payload)}

	appendPeer := func(dst Endpoint, pkt Packet) {
		p, ok := plan.peers[dst]
		if !ok {
			p = NewPayload()
			plan.peers[dst] = p
			plan.order = append(plan.order, dst)
		}
		p.Append(pkt.Identifier, pkt.Data)
	}

	for _, e := range queue {
		pkt := e.pkt
		switch pkt.Recipient.Kind() {
		case RecipientHost:
			if plan.host == nil {
				plan.host = NewPayload()
			}
			plan.host.Append(pkt.Identifier, pkt.Data)
		case RecipientSingle, RecipientSet:
			for _, dst := range pkt.Recipient.Peers() {
				appendPeer(dst, pkt)
			}
		case RecipientBroadcast:
			// Resolved now, not at enqueue, so peers that joined during the
			// tick are included.
			if b.dir == nil {
				b.log.Warn("broadcast with no endpoint directory",
					zap.String("identifier", pkt.Identifier))
				continue
			}
			for _, dst := range b.dir.Endpoints() {
				appendPeer(dst, pkt)
			}
		}
	}
	return plan
}

// Snapshot returns an independent copy of the records stabilized by the last
// Step. Mutating bridge state after the call can never be observed through a
// previously returned copy.
func (b *Bridge) Snapshot() []IncomingRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]IncomingRecord, len(b.snapshot))
	for i, r := range b.snapshot {
		out[i] = r.clone()
	}
	return out
}

// Query builds a QueryResult over the current snapshot, optionally restricted
// to the given identifiers.
func (b *Bridge) Query(identifiers ...string) QueryResult {
	return newQueryResult(b.Snapshot(), identifiers...)
}

// handleReceive is the channel delivery callback. It unpacks the payload in
// aggregation order, one record per tuple, runs each record through the
// receive filter chain and appends admitted records FIFO to the incoming
// queue. It may fire any number of times between two Steps.
func (b *Bridge) handleReceive(sender Endpoint, p *Payload) {
	if p == nil {
		return
	}
	b.mu.Lock()
	chain := b.recvFilters
	b.mu.Unlock()

	for _, id := range p.Identifiers() {
		for _, t := range p.Tuples(id) {
			rec := IncomingRecord{Identifier: id, Sender: sender, Data: t.Clone()}
			d := &RecvDelivery{Sender: sender, Record: &rec}
			err := chain.Handle(d, func(d *RecvDelivery) error {
				b.mu.Lock()
				b.incoming = append(b.incoming, *d.Record)
				b.mu.Unlock()
				return nil
			})
			if err != nil {
				b.met.RecordDropped()
				b.log.Debug("incoming record dropped",
					zap.String("identifier", id),
					zap.String("sender", string(sender)),
					zap.Error(err))
			}
		}
	}
}

// rejectReason maps validation errors to the metric label values.
func rejectReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrEmptyIdentifier):
		return "identifier"
	case errors.Is(err, ErrEmptyRecipient):
		return "recipient"
	case errors.Is(err, ErrPeerAddressing):
		return "role"
	case errors.Is(err, ErrUnknownEndpoint):
		return "endpoint"
	case errors.Is(err, ErrSendBudget):
		return "budget"
	default:
		return "other"
	}
}
