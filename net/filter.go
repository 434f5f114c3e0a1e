package net

// RecvDelivery carries one incoming record through the receive filter chain
// before the record becomes queryable.
type RecvDelivery struct {
	// Sender is the endpoint the enclosing payload arrived from.
	Sender Endpoint

	// Record is the unpacked record. Filters may rewrite its fields; the
	// record the final handler sees is what enters the incoming queue.
	Record *IncomingRecord
}

// RecvFilterHandleFunc advances the chain. The innermost handler appends the
// record to the bridge's incoming queue.
type RecvFilterHandleFunc func(d *RecvDelivery) error

// RecvFilter is one interceptor in the receive pipeline. A filter admits the
// record by calling next, or drops it by returning without doing so; any error
// returned keeps the record out of the queue and is logged by the bridge.
//
// This is the middleware extension point: validation, deduplication and rate
// limiting all hang off the same hook.
type RecvFilter func(d *RecvDelivery, next RecvFilterHandleFunc) error

// RecvFilterChain applies filters in registration order, recursively: each
// filter receives a continuation covering the rest of the chain plus the
// final handler.
type RecvFilterChain []RecvFilter

// Handle runs the delivery through the chain and then the final handler.
func (fc RecvFilterChain) Handle(d *RecvDelivery, f RecvFilterHandleFunc) error {
	if len(fc) == 0 {
		return f(d)
	}
	return fc[0](d, func(d *RecvDelivery) error {
		return fc[1:].Handle(d, f)
	})
}
