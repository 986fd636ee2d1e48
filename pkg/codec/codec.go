package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	JSONName = "json"
	CBORName = "cbor"
)

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrMissingType  = errors.New("message type is missing")
)

// Codec turns messages into frame payloads and back.
type Codec interface {
	Name() string
	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
}

func New(name string) (Codec, error) {
	switch name {
	case "", JSONName:
		return JSON{}, nil
	case CBORName:
		return CBOR{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
	}
}

type JSON struct{}

func (JSON) Name() string {
	return JSONName
}

func (JSON) Marshal(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrMissingType
	}

	return json.Marshal(msg)
}

func (JSON) Unmarshal(data []byte, msg *Message) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to decode json message: %w", err)
	}
	if msg.Type == "" {
		return ErrMissingType
	}

	return nil
}

type CBOR struct{}

func (CBOR) Name() string {
	return CBORName
}

func (CBOR) Marshal(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrMissingType
	}

	return cbor.Marshal(msg)
}

func (CBOR) Unmarshal(data []byte, msg *Message) error {
	if err := cbor.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to decode cbor message: %w", err)
	}
	if msg.Type == "" {
		return ErrMissingType
	}

	return nil
}
