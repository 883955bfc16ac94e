package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gobwas/ws"
)

const (
	len16Marker = 126
	len64Marker = 127

	// MaxHeaderSize is the largest possible frame header: 2 fixed bytes,
	// 8 bytes of extended length and a 4-byte mask key.
	MaxHeaderSize = 14
)

// Decoder parses frames from a byte slice that may hold a partial frame,
// exactly one frame, or several frames.
type Decoder struct {
	// Role is the local side. A server requires masked frames; a client
	// rejects them.
	Role Role
	// MaxPayload bounds the declared payload length of a single frame.
	// Zero means no limit beyond the wire format.
	MaxPayload uint64
}

// Decode attempts to parse one frame from the front of buf.
//
// It returns one of:
//   - (frame, consumed, nil) when a whole frame is present;
//   - (nil, need, nil) when more input is required, need >= 1 being the
//     minimum number of additional bytes before another attempt can succeed;
//   - (nil, 0, *ProtocolError) when the bytes violate the framing rules.
//
// Header checks run as soon as the header bytes are available, so an
// oversized or malformed frame is rejected before its payload arrives.
func (d *Decoder) Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 2 - len(buf), nil
	}

	b0, b1 := buf[0], buf[1]
	f := &Frame{
		Fin:    b0&0x80 != 0,
		RSV1:   b0&0x40 != 0,
		RSV2:   b0&0x20 != 0,
		RSV3:   b0&0x10 != 0,
		Opcode: Opcode(b0 & 0x0F),
		Masked: b1&0x80 != 0,
	}

	if f.RSV1 || f.RSV2 || f.RSV3 {
		return nil, 0, Violation(ErrReservedBits)
	}
	if !f.Opcode.IsValid() {
		return nil, 0, violationf(ErrUnknownOpcode, "0x%X", byte(f.Opcode))
	}
	if d.Role == RoleServer && !f.Masked {
		return nil, 0, Violation(ErrUnmaskedFrame)
	}
	if d.Role == RoleClient && f.Masked {
		return nil, 0, Violation(ErrMaskedFrame)
	}

	headerLen := 2
	length := uint64(b1 & 0x7F)
	switch length {
	case len16Marker:
		headerLen += 2
	case len64Marker:
		headerLen += 8
	}
	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, 0, Violation(ErrFragmentedControl)
		}
		if length > MaxControlPayload {
			return nil, 0, Violation(ErrControlTooLong)
		}
	}
	if f.Masked {
		headerLen += 4
	}
	if len(buf) < headerLen {
		return nil, headerLen - len(buf), nil
	}

	switch length {
	case len16Marker:
		length = uint64(binary.BigEndian.Uint16(buf[2:4]))
		if length < len16Marker {
			return nil, 0, violationf(ErrNonMinimalLength, "%d in 16 bits", length)
		}
	case len64Marker:
		length = binary.BigEndian.Uint64(buf[2:10])
		if length>>63 != 0 {
			return nil, 0, Violation(ErrLengthOverflow)
		}
		if length <= 0xFFFF {
			return nil, 0, violationf(ErrNonMinimalLength, "%d in 64 bits", length)
		}
	}
	if d.MaxPayload > 0 && length > d.MaxPayload {
		return nil, 0, violationf(ErrMessageTooBig, "frame of %d bytes, limit %d", length, d.MaxPayload)
	}
	if f.Masked {
		copy(f.Mask[:], buf[headerLen-4:headerLen])
	}

	avail := uint64(len(buf) - headerLen)
	if avail < length {
		return nil, int(length - avail), nil
	}

	total := headerLen + int(length)
	f.Payload = make([]byte, length)
	copy(f.Payload, buf[headerLen:total])
	if f.Masked {
		ws.Cipher(f.Payload, f.Mask, 0)
	}
	return f, total, nil
}

// Encoder serializes frames into wire bytes.
type Encoder struct {
	Role Role
	// Rand supplies mask keys for client frames. Nil uses crypto/rand.
	Rand io.Reader
}

// Encode returns the wire form of f. In client role a fresh mask key is drawn
// for every frame and the payload copy is masked; f.Payload is not modified.
// Control frames that are fragmented or longer than 125 bytes are refused.
func (e *Encoder) Encode(f Frame) ([]byte, error) {
	if !f.Opcode.IsValid() {
		return nil, fmt.Errorf("encode: %w", ErrUnknownOpcode)
	}
	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, fmt.Errorf("encode: %w", ErrFragmentedControl)
		}
		if len(f.Payload) > MaxControlPayload {
			return nil, fmt.Errorf("encode: %w", ErrControlTooLong)
		}
	}

	masked := e.Role == RoleClient
	if masked {
		r := e.Rand
		if r == nil {
			r = rand.Reader
		}
		if _, err := io.ReadFull(r, f.Mask[:]); err != nil {
			return nil, fmt.Errorf("encode: generating mask key: %w", err)
		}
	}

	n := len(f.Payload)
	out := make([]byte, 0, headerSize(n, masked)+n)

	b0 := byte(f.Opcode) & 0x0F
	if f.Fin {
		b0 |= 0x80
	}
	if f.RSV1 {
		b0 |= 0x40
	}
	if f.RSV2 {
		b0 |= 0x20
	}
	if f.RSV3 {
		b0 |= 0x10
	}
	out = append(out, b0)

	var maskBit byte
	if masked {
		maskBit = 0x80
	}
	switch {
	case n < len16Marker:
		out = append(out, maskBit|byte(n))
	case n <= 0xFFFF:
		out = append(out, maskBit|len16Marker)
		out = binary.BigEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, maskBit|len64Marker)
		out = binary.BigEndian.AppendUint64(out, uint64(n))
	}

	if masked {
		out = append(out, f.Mask[:]...)
	}
	start := len(out)
	out = append(out, f.Payload...)
	if masked {
		ws.Cipher(out[start:], f.Mask, 0)
	}
	return out, nil
}

func headerSize(n int, masked bool) int {
	size := 2
	switch {
	case n >= len16Marker && n <= 0xFFFF:
		size += 2
	case n > 0xFFFF:
		size += 8
	}
	if masked {
		size += 4
	}
	return size
}

// Fragment splits a data message into frames carrying at most size payload
// bytes each. The first frame has op, the rest are continuations, and only
// the last has Fin set. A size of zero or less yields a single frame.
func Fragment(op Opcode, payload []byte, size int) []Frame {
	if size <= 0 || len(payload) <= size {
		return []Frame{NewFrame(op, payload)}
	}
	frames := make([]Frame, 0, (len(payload)+size-1)/size)
	for off := 0; off < len(payload); off += size {
		end := min(off+size, len(payload))
		fop := OpContinuation
		if off == 0 {
			fop = op
		}
		frames = append(frames, Frame{
			Fin:     end == len(payload),
			Opcode:  fop,
			Payload: payload[off:end],
		})
	}
	return frames
}
