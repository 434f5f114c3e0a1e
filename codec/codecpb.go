package codec

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoCodec carries wire values as a protobuf structpb.Value tree, for
// deployments that standardize on protobuf framing end to end. Values pass
// through a JSON-shaped intermediate form, so numbers decode as float64.
// Acceptable for opaque tuple data; pick CBORCodec when integer width matters.
type ProtoCodec struct{}

// Name implements Codec.
func (c *ProtoCodec) Name() string { return "proto" }

// Encode implements Codec.
func (c *ProtoCodec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	val, err := structpb.NewValue(tree)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(val)
}

// Decode implements Codec.
func (c *ProtoCodec) Decode(b []byte, v any) error {
	val := &structpb.Value{}
	if err := proto.Unmarshal(b, val); err != nil {
		return err
	}
	raw, err := json.Marshal(val.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
