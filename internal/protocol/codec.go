package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrUnknownType is returned for frames whose "t" is not an intent.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned for frames that cannot be decoded or carry
	// unusable values.
	ErrMalformed = errors.New("malformed message")
)

// Encoding selects the wire format of a connection.
type Encoding int

const (
	JSON Encoding = iota
	MsgPack
)

// ParseEncoding maps a query value ("", "json", "msgpack") to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "json":
		return JSON, nil
	case "msgpack", "mp":
		return MsgPack, nil
	}
	return JSON, fmt.Errorf("unsupported encoding %q", s)
}

func (e Encoding) String() string {
	if e == MsgPack {
		return "msgpack"
	}
	return "json"
}

// Encode serializes an outbound message. msgpack output reuses the json keys.
func Encode(msg Message, enc Encoding) ([]byte, error) {
	if enc == MsgPack {
		var buf bytes.Buffer
		e := msgpack.NewEncoder(&buf)
		e.SetCustomStructTag("json")
		if err := e.Encode(msg); err != nil {
			return nil, fmt.Errorf("msgpack encode %s: %w", msg.MsgType(), err)
		}
		return buf.Bytes(), nil
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json encode %s: %w", msg.MsgType(), err)
	}
	return b, nil
}

// DecodeIntent parses one inbound frame.
func DecodeIntent(raw []byte, enc Encoding) (Intent, error) {
	var msg ClientMessage
	if enc == MsgPack {
		d := msgpack.NewDecoder(bytes.NewReader(raw))
		d.SetCustomStructTag("json")
		if err := d.Decode(&msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg.Intent()
}

// Intent converts the raw frame to its typed variant.
func (m ClientMessage) Intent() (Intent, error) {
	switch m.Type {
	case MsgHeading:
		if m.Angle == nil || math.IsNaN(*m.Angle) || math.IsInf(*m.Angle, 0) {
			return nil, fmt.Errorf("%w: heading without a finite angle", ErrMalformed)
		}
		return SetHeading{Angle: *m.Angle}, nil
	case MsgBoost:
		return SetBoost{On: m.Boost == 1}, nil
	case MsgRespawn:
		return RequestRespawn{}, nil
	case MsgSpectate:
		return EnterSpectator{}, nil
	case MsgGrantMass:
		if !(m.Amount > 0) || math.IsInf(m.Amount, 0) {
			return nil, fmt.Errorf("%w: grant amount must be positive", ErrMalformed)
		}
		return GrantMass{Amount: m.Amount}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
}
