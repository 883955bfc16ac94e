package protocol

import (
	"bytes"
	"errors"
	"testing"
)

// fixedMask returns the same key for every frame so wire bytes are predictable.
type fixedMask [4]byte

func (m fixedMask) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = m[i%4]
	}
	return len(p), nil
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		max      uint64
		data     []byte
		wantNeed int
		wantErr  error
		wantCode CloseCode
		verify   func(t *testing.T, f *Frame, n int)
	}{
		{
			name: "simple unmasked text frame",
			role: RoleClient,
			data: []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'},
			verify: func(t *testing.T, f *Frame, n int) {
				if !f.Fin || f.Opcode != OpText || f.Masked {
					t.Errorf("unexpected header %s", f)
				}
				if string(f.Payload) != "Hello" {
					t.Errorf("payload = %q", f.Payload)
				}
				if n != 7 {
					t.Errorf("consumed = %d, want 7", n)
				}
			},
		},
		{
			// RFC 6455 section 5.7 example
			name: "masked text frame",
			role: RoleServer,
			data: []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58},
			verify: func(t *testing.T, f *Frame, n int) {
				if string(f.Payload) != "Hello" {
					t.Errorf("payload = %q", f.Payload)
				}
				if f.Mask != [4]byte{0x37, 0xfa, 0x21, 0x3d} {
					t.Errorf("mask = %x", f.Mask)
				}
			},
		},
		{
			name: "trailing bytes of next frame are left alone",
			role: RoleClient,
			data: []byte{0x89, 0x00, 0x81},
			verify: func(t *testing.T, f *Frame, n int) {
				if f.Opcode != OpPing || n != 2 {
					t.Errorf("got %s consumed %d", f, n)
				}
			},
		},
		{name: "empty", role: RoleClient, data: nil, wantNeed: 2},
		{name: "one byte", role: RoleClient, data: []byte{0x81}, wantNeed: 1},
		{name: "missing 16-bit length", role: RoleClient, data: []byte{0x82, 0x7E, 0x00}, wantNeed: 1},
		{name: "missing mask key", role: RoleServer, data: []byte{0x82, 0x81, 0x01}, wantNeed: 3},
		{name: "partial payload", role: RoleClient, data: []byte{0x82, 0x04, 0x01}, wantNeed: 3},
		{
			name:     "reserved bit",
			role:     RoleClient,
			data:     []byte{0xC1, 0x00},
			wantErr:  ErrReservedBits,
			wantCode: CloseProtocolError,
		},
		{
			name:     "unknown opcode",
			role:     RoleClient,
			data:     []byte{0x83, 0x00},
			wantErr:  ErrUnknownOpcode,
			wantCode: CloseProtocolError,
		},
		{
			name:     "server receives unmasked frame",
			role:     RoleServer,
			data:     []byte{0x81, 0x00},
			wantErr:  ErrUnmaskedFrame,
			wantCode: CloseProtocolError,
		},
		{
			name:     "client receives masked frame",
			role:     RoleClient,
			data:     []byte{0x81, 0x80, 0, 0, 0, 0},
			wantErr:  ErrMaskedFrame,
			wantCode: CloseProtocolError,
		},
		{
			name:     "fragmented ping",
			role:     RoleClient,
			data:     []byte{0x09, 0x00},
			wantErr:  ErrFragmentedControl,
			wantCode: CloseProtocolError,
		},
		{
			name:     "long ping",
			role:     RoleClient,
			data:     []byte{0x89, 0x7E},
			wantErr:  ErrControlTooLong,
			wantCode: CloseProtocolError,
		},
		{
			name:     "non-minimal 16-bit length",
			role:     RoleClient,
			data:     []byte{0x82, 0x7E, 0x00, 0x05},
			wantErr:  ErrNonMinimalLength,
			wantCode: CloseProtocolError,
		},
		{
			name:     "non-minimal 64-bit length",
			role:     RoleClient,
			data:     []byte{0x82, 0x7F, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF},
			wantErr:  ErrNonMinimalLength,
			wantCode: CloseProtocolError,
		},
		{
			name:     "64-bit length with high bit",
			role:     RoleClient,
			data:     []byte{0x82, 0x7F, 0x80, 0, 0, 0, 0, 0, 0, 0},
			wantErr:  ErrLengthOverflow,
			wantCode: CloseProtocolError,
		},
		{
			name:     "declared length over limit before payload arrives",
			role:     RoleClient,
			max:      100,
			data:     []byte{0x82, 0x7E, 0x01, 0x00},
			wantErr:  ErrMessageTooBig,
			wantCode: CloseMessageTooBig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decoder{Role: tt.role, MaxPayload: tt.max}
			f, n, err := d.Decode(tt.data)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				var pe *ProtocolError
				if !errors.As(err, &pe) || pe.Code != tt.wantCode {
					t.Fatalf("err = %v, want close code %d", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNeed > 0 {
				if f != nil || n != tt.wantNeed {
					t.Fatalf("got frame=%v n=%d, want need %d", f, n, tt.wantNeed)
				}
				return
			}
			if f == nil {
				t.Fatalf("no frame, need %d", n)
			}
			if tt.verify != nil {
				tt.verify(t, f, n)
			}
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		frame Frame
		want  []byte
	}{
		{
			name:  "unmasked text",
			role:  RoleServer,
			frame: NewFrame(OpText, []byte("Hello")),
			want:  []byte{0x81, 0x05, 'H', 'e', 'l', 'l', 'o'},
		},
		{
			name:  "masked text",
			role:  RoleClient,
			frame: NewFrame(OpText, []byte("Hello")),
			want:  []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58},
		},
		{
			name:  "empty pong",
			role:  RoleServer,
			frame: NewFrame(OpPong, nil),
			want:  []byte{0x8A, 0x00},
		},
		{
			name:  "first fragment",
			role:  RoleServer,
			frame: Frame{Opcode: OpText, Payload: []byte("Hel")},
			want:  []byte{0x01, 0x03, 'H', 'e', 'l'},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Encoder{Role: tt.role, Rand: fixedMask{0x37, 0xfa, 0x21, 0x3d}}
			got, err := e.Encode(tt.frame)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 125, 126, 127, 0xFFFF, 0x10000, 70000}
	ops := []Opcode{OpText, OpBinary, OpContinuation}

	for _, role := range []Role{RoleClient, RoleServer} {
		peer := RoleServer
		if role == RoleServer {
			peer = RoleClient
		}
		enc := Encoder{Role: role}
		dec := Decoder{Role: peer}

		for _, op := range ops {
			for _, fin := range []bool{true, false} {
				for _, size := range sizes {
					payload := bytes.Repeat([]byte{byte(size)}, size)
					in := Frame{Fin: fin, Opcode: op, Payload: payload}
					wire, err := enc.Encode(in)
					if err != nil {
						t.Fatalf("%s %s size %d: %v", role, op, size, err)
					}
					if size > 0 && role == RoleServer && !bytes.Equal(wire[len(wire)-size:], payload) {
						t.Fatalf("server frame payload was modified on the wire")
					}
					out, n, err := dec.Decode(wire)
					if err != nil || out == nil {
						t.Fatalf("%s %s size %d: decode = %v, %v", role, op, size, out, err)
					}
					if n != len(wire) || out.Fin != fin || out.Opcode != op || !bytes.Equal(out.Payload, payload) {
						t.Fatalf("%s %s size %d: round trip mismatch", role, op, size)
					}
				}
			}
		}
	}
}

func TestEncodeFreshMaskPerFrame(t *testing.T) {
	e := Encoder{Role: RoleClient}
	payload := []byte("same payload")
	a, _ := e.Encode(NewFrame(OpBinary, payload))
	b, _ := e.Encode(NewFrame(OpBinary, payload))
	if bytes.Equal(a[2:6], b[2:6]) {
		t.Error("two frames share a mask key")
	}
	if string(payload) != "same payload" {
		t.Error("caller payload was masked in place")
	}
}

func TestEncodeRejectsBadControl(t *testing.T) {
	e := Encoder{Role: RoleServer}
	if _, err := e.Encode(NewFrame(OpPing, make([]byte, 126))); !errors.Is(err, ErrControlTooLong) {
		t.Errorf("err = %v, want ErrControlTooLong", err)
	}
	if _, err := e.Encode(Frame{Opcode: OpClose}); !errors.Is(err, ErrFragmentedControl) {
		t.Errorf("err = %v, want ErrFragmentedControl", err)
	}
}

func TestDecodeByteAtATime(t *testing.T) {
	e := Encoder{Role: RoleClient}
	wire, err := e.Encode(NewFrame(OpBinary, bytes.Repeat([]byte("ab"), 200)))
	if err != nil {
		t.Fatal(err)
	}
	d := Decoder{Role: RoleServer}
	for i := 0; i < len(wire); i++ {
		f, need, err := d.Decode(wire[:i])
		if err != nil || f != nil {
			t.Fatalf("prefix %d: frame=%v err=%v", i, f, err)
		}
		if need < 1 || i+need > len(wire) {
			t.Fatalf("prefix %d: need %d overshoots frame of %d", i, need, len(wire))
		}
	}
	f, n, err := d.Decode(wire)
	if err != nil || f == nil || n != len(wire) {
		t.Fatalf("full decode failed: %v", err)
	}
}

func TestFragment(t *testing.T) {
	frames := Fragment(OpText, []byte("abcdefgh"), 3)
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	wantOps := []Opcode{OpText, OpContinuation, OpContinuation}
	var joined []byte
	for i, f := range frames {
		if f.Opcode != wantOps[i] {
			t.Errorf("frame %d opcode %s", i, f.Opcode)
		}
		if f.Fin != (i == 2) {
			t.Errorf("frame %d fin %v", i, f.Fin)
		}
		joined = append(joined, f.Payload...)
	}
	if string(joined) != "abcdefgh" {
		t.Errorf("joined = %q", joined)
	}

	if single := Fragment(OpBinary, []byte("x"), 0); len(single) != 1 || !single[0].Fin {
		t.Errorf("unexpected %v", single)
	}
}
