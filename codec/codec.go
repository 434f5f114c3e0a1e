// Package codec serializes wire payload entries for channel implementations.
// A process-wide codec keeps both ends of a channel agreeing on the encoding
// without threading a codec handle through every transport constructor.
package codec

import "errors"

var (
	errCodecNotInit = errors.New("codec not initialized")

	_codec Codec = &CBORCodec{}
)

// Codec encodes and decodes wire values. Implementations must round-trip
// ordered slices of payload entries losslessly: entry order and tuple order
// are load-bearing for the bridge's ordering guarantees.
type Codec interface {
	// Name identifies the codec in logs and handshakes.
	Name() string

	Encode(v any) ([]byte, error)
	Decode(b []byte, v any) error
}

// Encode serializes v with the process codec.
func Encode(v any) ([]byte, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Encode(v)
}

// Decode deserializes b into v with the process codec.
func Decode(b []byte, v any) error {
	if _codec == nil {
		return errCodecNotInit
	}
	return _codec.Decode(b, v)
}

// SetCodec replaces the process codec. Call before any channel starts; both
// channel ends must agree.
func SetCodec(c Codec) {
	_codec = c
}
