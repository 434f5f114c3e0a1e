package net

import "errors"

// Every failure surfaced by this package is caller-recoverable: the offending
// operation is a no-op and the caller decides whether to retry, log, or drop.
// Nothing here terminates the process.
var (
	// ErrEmptyIdentifier is returned when a packet is enqueued without an
	// identifier. Identifiers key payload aggregation, so blanks are rejected.
	ErrEmptyIdentifier = errors.New("ticknet: empty packet identifier")

	// ErrEmptyRecipient is returned for the zero RecipientSpec.
	ErrEmptyRecipient = errors.New("ticknet: empty recipient spec")

	// ErrPeerAddressing is returned when a peer-role bridge is asked to
	// address anything other than the host, including SendRequest.To calls.
	ErrPeerAddressing = errors.New("ticknet: peers may only address the host")

	// ErrUnknownEndpoint is returned when a host-role send names an endpoint
	// the directory does not currently know.
	ErrUnknownEndpoint = errors.New("ticknet: recipient endpoint not connected")

	// ErrSendBudget is returned when the per-tick send budget is exhausted.
	// The budget resets at the next tick boundary.
	ErrSendBudget = errors.New("ticknet: per-tick send budget exhausted")

	// ErrStaleRequest is returned by SendRequest.To after the owning bridge
	// has flushed the original packet. Handles never outlive their tick.
	ErrStaleRequest = errors.New("ticknet: send request is stale")

	// ErrChannelClosed is returned by channel sends after Close.
	ErrChannelClosed = errors.New("ticknet: channel closed")

	// ErrRecvLimited is the error receive-limiter filters report when a
	// record is dropped; it keeps the record out of the incoming queue.
	ErrRecvLimited = errors.New("ticknet: incoming record rate limited")
)
