package net

// Tuple is one packet's ordered data values. Values are opaque to the bridge;
// codecs decide how they cross the wire.
type Tuple []any

// Clone returns a shallow copy of the tuple. Element values themselves are
// treated as immutable by convention.
func (t Tuple) Clone() Tuple {
	if t == nil {
		return nil
	}
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// Payload is the aggregated, identifier-keyed structure exchanged per
// transport call. It maps each identifier to the ordered list of data tuples
// sent under it within one tick, and it remembers the order identifiers were
// first appended so that unpacking reproduces aggregation order exactly.
//
// One payload per distinct destination is built at each tick boundary; this is
// what bounds transport calls to the number of destinations rather than the
// number of packets.
type Payload struct {
	keys  []string
	lists map[string][]Tuple
}

// NewPayload creates an empty payload.
func NewPayload() *Payload {
	return &Payload{lists: make(map[string][]Tuple)}
}

// Append adds a data tuple under an identifier, preserving first-seen
// identifier order and per-identifier send order. The tuple is copied so that
// payloads built by fan-out never share backing storage.
func (p *Payload) Append(identifier string, t Tuple) {
	if _, ok := p.lists[identifier]; !ok {
		p.keys = append(p.keys, identifier)
	}
	p.lists[identifier] = append(p.lists[identifier], t.Clone())
}

// Identifiers returns the identifiers in aggregation order.
func (p *Payload) Identifiers() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Tuples returns the ordered tuple list for an identifier, nil if absent.
// The returned slice is owned by the payload and must not be mutated.
func (p *Payload) Tuples(identifier string) []Tuple {
	return p.lists[identifier]
}

// Len returns the total number of tuples across all identifiers.
func (p *Payload) Len() int {
	n := 0
	for _, l := range p.lists {
		n += len(l)
	}
	return n
}

// Empty reports whether the payload carries no tuples.
func (p *Payload) Empty() bool { return len(p.keys) == 0 }

// Clone returns an independent deep copy of the payload.
func (p *Payload) Clone() *Payload {
	out := NewPayload()
	for _, id := range p.keys {
		for _, t := range p.lists[id] {
			out.Append(id, t)
		}
	}
	return out
}

// PayloadEntry is the wire form of one identifier's aggregated tuples. The
// entry list, not a map, crosses the transport boundary so that identifier
// order survives serialization in both codecs.
type PayloadEntry struct {
	Identifier string  `cbor:"identifier" json:"identifier"`
	Tuples     []Tuple `cbor:"tuples" json:"tuples"`
}

// Entries flattens the payload into its wire form, in aggregation order.
func (p *Payload) Entries() []PayloadEntry {
	out := make([]PayloadEntry, 0, len(p.keys))
	for _, id := range p.keys {
		tuples := make([]Tuple, len(p.lists[id]))
		for i, t := range p.lists[id] {
			tuples[i] = t.Clone()
		}
		out = append(out, PayloadEntry{Identifier: id, Tuples: tuples})
	}
	return out
}

// PayloadFromEntries rebuilds a payload from its wire form, preserving entry
// order and tuple order.
func PayloadFromEntries(entries []PayloadEntry) *Payload {
	p := NewPayload()
	for _, e := range entries {
		for _, t := range e.Tuples {
			p.Append(e.Identifier, t)
		}
	}
	return p
}
