// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared identity types, ID ranges, and link states.

package api

import (
	"strconv"

	"github.com/samber/oops"
)

// SessionID identifies a live or pending connection.
//
// The identity space is split in two halves: accepted sessions live in
// [0, MiddleSessionID) and connector sessions in [MiddleSessionID, MaxSessionID).
type SessionID uint32

// AccepterID identifies a listener.
type AccepterID uint32

// TimerID identifies a scheduled one-shot timer. Zero is never issued.
type TimerID uint64

// ProtoID is the message type carried in a binary frame header.
type ProtoID uint16

const (
	// MiddleSessionID is the first connector SessionID.
	MiddleSessionID SessionID = 1 << 31
	// MaxSessionID bounds the connector half-range (exclusive) and doubles as
	// the invalid marker.
	MaxSessionID SessionID = 1<<32 - 1
	// InvalidSessionID is never allocated.
	InvalidSessionID = MaxSessionID

	// InvalidAccepterID is never allocated.
	InvalidAccepterID AccepterID = 0

	// InvalidTimerID is never issued.
	InvalidTimerID TimerID = 0
)

// IsConnector reports whether id belongs to the connector half-range.
func (id SessionID) IsConnector() bool {
	return id >= MiddleSessionID && id < MaxSessionID
}

// IsAccepted reports whether id belongs to the accept half-range.
func (id SessionID) IsAccepted() bool {
	return id < MiddleSessionID
}

func (id SessionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// LinkState enumerates the lifecycle of a session.
type LinkState int32

const (
	LinkConnecting LinkState = iota
	LinkEstablished
	LinkClosing
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkConnecting:
		return "connecting"
	case LinkEstablished:
		return "established"
	case LinkClosing:
		return "closing"
	case LinkClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ProtoType selects how received bytes are cut into frames.
type ProtoType int

const (
	// ProtoBinary uses the length-prefixed binary header.
	ProtoBinary ProtoType = iota
	// ProtoHTTP hands raw chunks to the handler; HTTP parsing is done above.
	ProtoHTTP
)

func (p ProtoType) String() string {
	switch p {
	case ProtoBinary:
		return "binary"
	case ProtoHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// ParseProtoType maps a config string onto a ProtoType.
func ParseProtoType(s string) (ProtoType, error) {
	switch s {
	case "", "binary", "tcp":
		return ProtoBinary, nil
	case "http":
		return ProtoHTTP, nil
	default:
		return ProtoBinary, oops.Wrapf(ErrInvalidArgument, "unknown proto type %q", s)
	}
}

// MarshalText renders the config spelling.
func (p ProtoType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts the config spelling.
func (p *ProtoType) UnmarshalText(text []byte) error {
	v, err := ParseProtoType(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Task is a unit of work executed on the reactor goroutine. A returned error
// is logged by the loop and never stops it.
type Task func() error
