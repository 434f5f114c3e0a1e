package net

import (
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// RecvLimiter gates how fast incoming records are admitted to the queue.
// Admit is consulted once per unpacked record; a false return drops the
// record. Both implementations support lock-free hot reload so limits can be
// adjusted from a config change listener without pausing traffic.
type RecvLimiter interface {
	// Admit reports whether the next record may enter the incoming queue.
	// Implementations may block to pace traffic instead of dropping.
	Admit() bool
}

// TokenRecvLimiter is a token bucket limiter on golang.org/x/time/rate.
// Over-limit records are dropped rather than delayed, which suits the tick
// model: a record delayed past its tick boundary would land in the wrong
// snapshot anyway.
type TokenRecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewTokenRecvLimiter creates a token bucket limiter admitting rps records
// per second with the given burst size.
func NewTokenRecvLimiter(rps, burst int) *TokenRecvLimiter {
	l := &TokenRecvLimiter{}
	l.limiter.Store(rate.NewLimiter(rate.Limit(rps), burst))
	return l
}

// Admit consumes one token if available; it never blocks.
func (l *TokenRecvLimiter) Admit() bool {
	return l.limiter.Load().Allow()
}

// Reload swaps in a new limit at runtime.
func (l *TokenRecvLimiter) Reload(rps, burst int) {
	l.limiter.Store(rate.NewLimiter(rate.Limit(rps), burst))
}

// FunnelRecvLimiter is a leaky bucket limiter on go.uber.org/ratelimit. It
// paces delivery instead of dropping: Admit blocks until the next slot and
// always returns true. Use it when every record matters more than tick
// latency, e.g. replaying captured traffic into a simulation.
type FunnelRecvLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelRecvLimiter creates a leaky bucket limiter admitting rps records
// per second.
func NewFunnelRecvLimiter(rps int) *FunnelRecvLimiter {
	l := &FunnelRecvLimiter{}
	lim := ratelimit.New(rps)
	l.limiter.Store(&lim)
	return l
}

// Admit blocks until the leaky bucket permits the next record.
func (l *FunnelRecvLimiter) Admit() bool {
	(*l.limiter.Load()).Take()
	return true
}

// Reload swaps in a new rate at runtime.
func (l *FunnelRecvLimiter) Reload(rps int) {
	lim := ratelimit.New(rps)
	l.limiter.Store(&lim)
}

// recvLimitFilter adapts a RecvLimiter into the receive filter chain.
func recvLimitFilter(l RecvLimiter) RecvFilter {
	return func(d *RecvDelivery, next RecvFilterHandleFunc) error {
		if !l.Admit() {
			return ErrRecvLimited
		}
		return next(d)
	}
}
