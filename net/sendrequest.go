package net

import "fmt"

// SendRequest is the handle returned by every successful EnqueueSend. It lets
// host application code rewrite the recipient of an already-queued packet, up
// until the Step that flushes it.
//
// The handle addresses its packet through an opaque token plus the bridge
// generation current at enqueue time, never a queue position: To itself
// reorders the queue, and a positional reference would alias whatever packet
// slid into the old slot. Once the owning Step runs, the generation moves on
// and every handle from the flushed tick reports ErrStaleRequest.
type SendRequest struct {
	bridge *Bridge
	token  uint64
	gen    uint64
}

// To rebuilds the queued packet with a new recipient, leaving identifier and
// data untouched. The original entry is removed and the rebuilt packet is
// appended at the queue tail, so the packet's payload slot moves to the end of
// its destination's send order. The handle stays valid for further To calls
// within the same tick.
//
// Peers cannot redirect their own outbound packets: the call is rejected with
// ErrPeerAddressing and the queue is left untouched. A stale handle (owning
// tick already flushed) is rejected with ErrStaleRequest.
func (r *SendRequest) To(rcpt RecipientSpec) error {
	if r == nil || r.bridge == nil {
		return ErrStaleRequest
	}
	b := r.bridge

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.role != RoleHost {
		return fmt.Errorf("%w: cannot redirect", ErrPeerAddressing)
	}
	if r.gen != b.generation {
		return ErrStaleRequest
	}

	idx := -1
	for i, e := range b.outgoing {
		if e.token == r.token {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrStaleRequest
	}

	if err := b.validateLocked(rcpt, b.outgoing[idx].pkt.Identifier); err != nil {
		return err
	}

	rebuilt := outgoingEntry{
		token: r.token,
		pkt: Packet{
			Identifier: b.outgoing[idx].pkt.Identifier,
			Recipient:  rcpt,
			Data:       b.outgoing[idx].pkt.Data,
		},
	}
	b.outgoing = append(b.outgoing[:idx], b.outgoing[idx+1:]...)
	b.outgoing = append(b.outgoing, rebuilt)
	return nil
}

// Index reports the packet's current 1-based position in the outgoing queue,
// or 0 once the handle is stale. Positions are only meaningful until the next
// Step or To call; the token is what actually addresses the packet.
func (r *SendRequest) Index() int {
	if r == nil || r.bridge == nil {
		return 0
	}
	b := r.bridge

	b.mu.Lock()
	defer b.mu.Unlock()

	if r.gen != b.generation {
		return 0
	}
	for i, e := range b.outgoing {
		if e.token == r.token {
			return i + 1
		}
	}
	return 0
}
