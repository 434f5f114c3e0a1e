package net

// Packet is one queued outgoing message: an identifier naming the logical
// message type, the destination spec, and the ordered data values. Packets are
// immutable once flushed; before the flush the recipient may be rewritten
// through the SendRequest returned at enqueue time, never in place.
type Packet struct {
	Identifier string
	Recipient  RecipientSpec
	Data       Tuple
}

// IncomingRecord is one received message as seen by queries: the identifier,
// the sending endpoint (HostEndpoint for host-to-peer traffic), and the data
// tuple. Records are produced only by the channel receive path; application
// code never constructs them.
type IncomingRecord struct {
	Identifier string
	Sender     Endpoint
	Data       Tuple
}

// clone returns a copy safe to hand out of the bridge.
func (r IncomingRecord) clone() IncomingRecord {
	return IncomingRecord{
		Identifier: r.Identifier,
		Sender:     r.Sender,
		Data:       r.Data.Clone(),
	}
}
