// Package fragment reassembles fragmented data messages.
package fragment

import (
	"fmt"
	"unicode/utf8"

	"github.com/muurk/wsproto/internal/protocol"
)

// Message is a complete data message.
type Message struct {
	Opcode  protocol.Opcode // OpText or OpBinary
	Payload []byte
}

// Reassembler tracks at most one in-progress fragmented message. Control
// frames are not its concern and must not be passed to Push.
type Reassembler struct {
	// MaxMessageSize bounds the cumulative payload of one message. Zero
	// means unlimited.
	MaxMessageSize int
	// ValidateUTF8 rejects text messages that are not valid UTF-8 with
	// close code 1007.
	ValidateUTF8 bool

	active bool
	opcode protocol.Opcode
	buf    []byte
}

// Push feeds one data or continuation frame. It returns the completed
// message when f finishes one, nil while a message is still in progress,
// or a *protocol.ProtocolError on a sequencing, size or encoding violation.
func (r *Reassembler) Push(f *protocol.Frame) (*Message, error) {
	switch {
	case f.Opcode.IsControl():
		return nil, fmt.Errorf("reassembler: control frame %s", f.Opcode)
	case f.Opcode == protocol.OpContinuation:
		if !r.active {
			return nil, protocol.Violation(protocol.ErrUnexpectedContinuation)
		}
	default:
		if r.active {
			return nil, protocol.Violation(protocol.ErrInterleavedMessage)
		}
		r.active = true
		r.opcode = f.Opcode
		r.buf = r.buf[:0]
	}

	if r.MaxMessageSize > 0 && len(r.buf)+len(f.Payload) > r.MaxMessageSize {
		r.Reset()
		return nil, protocol.Violation(protocol.ErrMessageTooBig)
	}

	if f.Fin && len(r.buf) == 0 {
		// unfragmented: hand the frame payload over without copying
		r.active = false
		return r.finish(f.Payload)
	}

	r.buf = append(r.buf, f.Payload...)
	if !f.Fin {
		return nil, nil
	}
	payload := make([]byte, len(r.buf))
	copy(payload, r.buf)
	r.active = false
	r.buf = r.buf[:0]
	return r.finish(payload)
}

func (r *Reassembler) finish(payload []byte) (*Message, error) {
	if r.ValidateUTF8 && r.opcode == protocol.OpText && !utf8.Valid(payload) {
		return nil, protocol.Violation(protocol.ErrInvalidUTF8)
	}
	return &Message{Opcode: r.opcode, Payload: payload}, nil
}

// InProgress reports whether a fragmented message has started but not finished.
func (r *Reassembler) InProgress() bool {
	return r.active
}

// Buffered returns the number of payload bytes held for the current message.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// Reset discards any partial message.
func (r *Reassembler) Reset() {
	r.active = false
	r.buf = nil
}
