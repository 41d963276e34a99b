package pb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the JSON codec
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals the wire types as JSON
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %T: %w", v, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string { return CodecName }

// WithJSONCodec is the call option clients need to reach agentd
func WithJSONCodec() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
