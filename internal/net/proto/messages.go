// Package proto defines the websocket envelopes exchanged with scripting
// clients.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	TypeHello     = "hello"
	TypeCall      = "call"
	TypeResult    = "result"
	TypeHeartbeat = "heartbeat"
)

// Rejection codes carried by failed results.
const (
	CodeInvalidEnvelope = "invalid_envelope"
	CodeUnknownNative   = "unknown_native"
	CodeBadArgs         = "bad_args"
	CodeUnavailable     = "unavailable"
	CodeQueueLimit      = "queue_limit"
	CodeQueueFull       = "queue_full"
	CodeFailed          = "failed"
)

var (
	ErrUnsupportedVersion = errors.New("proto: unsupported protocol version")
	ErrMissingNative      = errors.New("proto: call without native")
)

// ClientMessage is any envelope a client sends. Type selects which fields
// are meaningful.
type ClientMessage struct {
	Ver    int             `json:"ver,omitempty"`
	Type   string          `json:"type" jsonschema:"enum=call,enum=heartbeat"`
	ID     string          `json:"id,omitempty" jsonschema:"description=Echoed on the matching result"`
	Native string          `json:"native,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	SentAt int64           `json:"sentAt,omitempty"`
}

// ResultMessage answers one call.
type ResultMessage struct {
	Ver   int    `json:"ver"`
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Tick  uint64 `json:"tick,omitempty"`
}

// HelloMessage is sent once when a session opens.
type HelloMessage struct {
	Ver     int      `json:"ver"`
	Type    string   `json:"type"`
	Session string   `json:"session"`
	Natives []string `json:"natives"`
}

type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// DecodeClientMessage parses and validates a client envelope.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("proto: decode: %w", err)
	}
	if msg.Ver != 0 && msg.Ver != Version {
		return msg, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Ver)
	}
	switch msg.Type {
	case TypeCall:
		msg.Native = strings.TrimSpace(msg.Native)
		if msg.Native == "" {
			return msg, ErrMissingNative
		}
	case TypeHeartbeat:
	default:
		return msg, fmt.Errorf("proto: unknown message type %q", msg.Type)
	}
	return msg, nil
}

// Success builds the result for a call that returned value.
func Success(id string, value any, tick uint64) ResultMessage {
	return ResultMessage{Ver: Version, Type: TypeResult, ID: id, OK: true, Value: value, Tick: tick}
}

// Failure builds the result for a call that was rejected or failed.
func Failure(id, code string, err error) ResultMessage {
	msg := ResultMessage{Ver: Version, Type: TypeResult, ID: id, Code: code}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func NewHello(session string, natives []string) HelloMessage {
	return HelloMessage{Ver: Version, Type: TypeHello, Session: session, Natives: natives}
}
