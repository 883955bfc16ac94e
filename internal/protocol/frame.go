package protocol

import (
	"fmt"
)

// Opcode is the 4-bit frame type.
type Opcode byte

// WebSocket frame opcodes
const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// MaxControlPayload is the largest payload a close, ping or pong frame may carry.
const MaxControlPayload = 125

// IsValid reports whether o is one of the opcodes defined by RFC 6455.
func (o Opcode) IsValid() bool {
	switch o {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
		return true
	}
	return false
}

// IsControl reports whether o is a close, ping or pong opcode.
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// IsData reports whether o starts a data message.
func (o Opcode) IsData() bool {
	return o == OpText || o == OpBinary
}

// String returns a human-readable opcode name
func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", byte(o))
	}
}

// Frame represents a WebSocket frame. Payload is always unmasked; Mask
// records the key the frame carried (decode) or was sent with (encode).
type Frame struct {
	Fin     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Masked  bool
	Mask    [4]byte
	Payload []byte
}

// NewFrame returns a final frame with the given opcode and payload.
func NewFrame(op Opcode, payload []byte) Frame {
	return Frame{Fin: true, Opcode: op, Payload: payload}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.Fin, f.Opcode, f.Masked, len(f.Payload))
}

// Role is the side of the connection a codec serves. It decides the masking
// direction: clients mask every frame they send, servers never do.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
