// File: protocol/frame_codec.go
// Package protocol implements length-prefixed frame codecs with size enforcement.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Binary frames carry an 8-byte little-endian header:
//
//	offset 0  uint32  total frame length, header included
//	offset 4  uint16  reserved, zero on encode
//	offset 6  uint16  protocol id
//
// The codec only finds frame boundaries; bodies are opaque.

package protocol

import (
	"encoding/binary"

	"github.com/samber/oops"

	"github.com/momentics/hioload-net/api"
)

// HeaderSize is the fixed binary header length.
const HeaderSize = 8

// DefaultMaxFrameSize bounds a frame when no limit is configured.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// Header is a decoded binary frame header.
type Header struct {
	Length  uint32
	ProtoID api.ProtoID
}

// BodyLen is the payload size following the header.
func (h Header) BodyLen() int { return int(h.Length) - HeaderSize }

// EncodeFrame builds a complete frame around body.
func EncodeFrame(protoID api.ProtoID, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	PutHeader(buf, Header{Length: uint32(len(buf)), ProtoID: protoID})
	copy(buf[HeaderSize:], body)
	return buf
}

// PutHeader writes h into the first HeaderSize bytes of b.
func PutHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:], h.Length)
	binary.LittleEndian.PutUint16(b[4:], 0)
	binary.LittleEndian.PutUint16(b[6:], uint16(h.ProtoID))
}

// DecodeHeader parses the header at the start of b. Length is validated
// against the header size only.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, oops.Wrapf(api.ErrFrameSize, "need %d header bytes, have %d", HeaderSize, len(b))
	}
	h := Header{
		Length:  binary.LittleEndian.Uint32(b[0:]),
		ProtoID: api.ProtoID(binary.LittleEndian.Uint16(b[6:])),
	}
	if h.Length < HeaderSize {
		return Header{}, oops.Wrapf(api.ErrFrameSize, "declared length %d below header size", h.Length)
	}
	return h, nil
}

// Binary frames a stream of EncodeFrame output.
type Binary struct {
	MaxFrameSize int
}

// FrameLength implements api.Framer.
func (f Binary) FrameLength(buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, nil
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return 0, err
	}
	limit := f.MaxFrameSize
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}
	if int64(h.Length) > int64(limit) {
		return 0, oops.Wrapf(api.ErrFrameSize, "frame of %d bytes exceeds limit %d", h.Length, limit)
	}
	if len(buf) < int(h.Length) {
		return 0, nil
	}
	return int(h.Length), nil
}

// Raw treats every received chunk as one frame. HTTP mode uses it and leaves
// request parsing to the handler.
type Raw struct{}

// FrameLength implements api.Framer.
func (Raw) FrameLength(buf []byte) (int, error) {
	return len(buf), nil
}

// ForProto returns the default framer for p.
func ForProto(p api.ProtoType, maxFrameSize int) api.Framer {
	if p == api.ProtoHTTP {
		return Raw{}
	}
	return Binary{MaxFrameSize: maxFrameSize}
}
