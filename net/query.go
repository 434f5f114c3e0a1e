package net

import "iter"

// QueryRecord is one yielded row of a query: the 1-based position within the
// filtered output, the sending endpoint, the identifier and the data tuple.
type QueryRecord struct {
	Pos        int
	Sender     Endpoint
	Identifier string
	Data       Tuple
}

// QueryResult is an immutable filter view over one tick's snapshot. Filter
// methods return new values over the same records; the receiver is never
// mutated, so views can be forked and composed freely within the tick.
//
// A record matches when its identifier is in the identifier filter (or the
// filter is empty) and its sender is in the sender filter (or that filter is
// empty). Filter application order never changes the matched set.
//
// The view borrows the snapshot it was built over; like the snapshot itself it
// is only meaningful within the tick that produced it.
type QueryResult struct {
	records []IncomingRecord
	idents  map[string]struct{}
	senders map[Endpoint]struct{}
}

// newQueryResult builds a view over records, optionally pre-filtered by
// identifier. An empty identifier list matches everything.
func newQueryResult(records []IncomingRecord, identifiers ...string) QueryResult {
	return QueryResult{
		records: records,
		idents:  stringFilter(identifiers),
	}
}

// FilterByIdentifier returns a new view with the identifier filter replaced.
// No identifiers clears the filter.
func (q QueryResult) FilterByIdentifier(identifiers ...string) QueryResult {
	return QueryResult{
		records: q.records,
		idents:  stringFilter(identifiers),
		senders: q.senders,
	}
}

// FilterBySender returns a new view with the sender filter replaced.
// No senders clears the filter.
func (q QueryResult) FilterBySender(senders ...Endpoint) QueryResult {
	filter := make(map[Endpoint]struct{}, len(senders))
	for _, s := range senders {
		filter[s] = struct{}{}
	}
	if len(filter) == 0 {
		filter = nil
	}
	return QueryResult{
		records: q.records,
		idents:  q.idents,
		senders: filter,
	}
}

// All returns a lazy, restartable sequence of the matching records in
// snapshot order. Each range over the sequence starts fresh at the first
// match; Pos counts only yielded records.
func (q QueryResult) All() iter.Seq[QueryRecord] {
	return func(yield func(QueryRecord) bool) {
		pos := 0
		for _, r := range q.records {
			if !q.matches(r) {
				continue
			}
			pos++
			if !yield(QueryRecord{
				Pos:        pos,
				Sender:     r.Sender,
				Identifier: r.Identifier,
				Data:       r.Data,
			}) {
				return
			}
		}
	}
}

// Records materializes the matching rows.
func (q QueryResult) Records() []QueryRecord {
	var out []QueryRecord
	for rec := range q.All() {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of matching records.
func (q QueryResult) Count() int {
	n := 0
	for range q.All() {
		n++
	}
	return n
}

func (q QueryResult) matches(r IncomingRecord) bool {
	if q.idents != nil {
		if _, ok := q.idents[r.Identifier]; !ok {
			return false
		}
	}
	if q.senders != nil {
		if _, ok := q.senders[r.Sender]; !ok {
			return false
		}
	}
	return true
}

func stringFilter(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
