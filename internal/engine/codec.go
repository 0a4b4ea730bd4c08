package engine

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a gRPC call-content-subtype so the engine
// client's calls negotiate this JSON codec instead of gRPC's default
// protobuf codec. Real protobuf-generated stubs are outside this
// project's scope (see package doc); this codec lets the hand-written
// message shapes above travel over the same HTTP/2 transport without a
// `.proto` build step.
const codecName = "quarry-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("engine: unmarshal into %T: %w", v, err)
	}
	return nil
}
