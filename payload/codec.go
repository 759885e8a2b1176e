// Package payload encodes grid responses for the wire.
//
// JSON is the format browser grids consume. MessagePack serves non-browser
// clients. Either can be zstd-compressed with a Compressor.
package payload

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hugr-lab/datatable-go/engine"
)

// Format is a wire encoding.
type Format int

// Supported encodings.
const (
	JSON Format = iota
	MsgPack
)

// Content types of the supported encodings.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == MsgPack {
		return ContentTypeMsgPack
	}
	return ContentTypeJSON
}

func (f Format) String() string {
	if f == MsgPack {
		return "msgpack"
	}
	return "json"
}

// Negotiate picks the format from an Accept header. MessagePack is chosen
// only when explicitly accepted; everything else gets JSON.
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mime, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(mime) {
		case ContentTypeMsgPack, "application/x-msgpack", "application/vnd.msgpack":
			return MsgPack
		}
	}
	return JSON
}

// Encode serializes a response.
//
// Example:
//
//	resp, err := e.Output(ctx)
//	body, err := payload.Encode(resp, payload.Negotiate(r.Header.Get("Accept")))
func Encode(resp *engine.Response, f Format) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil response")
	}

	switch f {
	case JSON:
		data, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return data, nil
	case MsgPack:
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported payload format %d", f)
	}
}

// Decode deserializes an encoded payload into v, typically a
// map[string]any. Used by clients and tests.
func Decode(data []byte, f Format, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty %s payload", f)
	}

	switch f {
	case JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case MsgPack:
		if err := msgpack.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode MessagePack: %w", err)
		}
	default:
		return fmt.Errorf("unsupported payload format %d", f)
	}
	return nil
}
