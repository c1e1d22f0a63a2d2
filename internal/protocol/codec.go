package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec marshals message payloads. JSON is the wire default; CBOR is kept as
// a drop-in alternative for peers that negotiate it out of band.
type Codec struct {
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error
}

func NewJSONCodec() *Codec {
	return &Codec{
		Marshal:   json.Marshal,
		Unmarshal: json.Unmarshal,
	}
}

func NewCBORCodec() *Codec {
	return &Codec{
		Marshal:   cbor.Marshal,
		Unmarshal: cbor.Unmarshal,
	}
}

// DefaultCodec is used by the package-level Encode and Decode.
var DefaultCodec = NewJSONCodec()

// ByName maps a wire-format name to its codec. There is no in-band
// negotiation; both peers must run with the same setting.
func ByName(name string) (*Codec, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "cbor":
		return NewCBORCodec(), nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", name)
	}
}

// envelope is the wire shape: a discriminator plus a kind-specific payload.
type envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes a message into a single wire frame.
func Encode(msg Message) ([]byte, error) {
	payload, err := DefaultCodec.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Kind(), err)
	}
	raw, err := DefaultCodec.Marshal(envelope{Type: msg.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msg.Kind(), err)
	}
	return raw, nil
}

// MustEncode is Encode for messages that cannot fail to marshal.
func MustEncode(msg Message) []byte {
	out, err := Encode(msg)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode parses one wire frame into its typed message. Frames with an unknown
// discriminator return an error so the caller can log and drop them.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := DefaultCodec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case KindStart:
		msg = &Start{}
	case KindUpdateScore:
		msg = &UpdateScore{}
	case KindGameOver:
		msg = &GameOver{}
	case KindReady:
		msg = &Ready{}
	case KindRequestMap:
		msg = &RequestMap{}
	case KindGridUpdate:
		msg = &GridUpdate{}
	case KindSyncMap:
		msg = &SyncMap{}
	default:
		return nil, fmt.Errorf("unknown message kind %q", env.Type)
	}

	if len(env.Payload) > 0 {
		if err := DefaultCodec.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return msg, nil
}
