// Package api defines the wire contract of the credkeeper gRPC service:
// request and response messages, the service descriptor with its client
// stub, and the JSON codec the messages travel in. The HTTP adapter reuses
// the same messages as its JSON bodies.
package api

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the JSON codec
// ("application/grpc+json").
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption makes a client call use the JSON codec. Servers pick the codec
// from the content-subtype, so nothing is needed on that side.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
