package codec

import "github.com/fxamacker/cbor/v2"

// CBORCodec is the default wire codec. CBOR arrays preserve element order and
// carry mixed-type tuples without a schema, which is exactly the shape of a
// payload entry list. Note that integers decoded into any come back as
// int64/uint64 regardless of the width sent.
type CBORCodec struct{}

// Name implements Codec.
func (c *CBORCodec) Name() string { return "cbor" }

// Encode implements Codec.
func (c *CBORCodec) Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// Decode implements Codec.
func (c *CBORCodec) Decode(b []byte, v any) error {
	return cbor.Unmarshal(b, v)
}
