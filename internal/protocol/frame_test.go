package protocol

import "testing"

func TestOpcode(t *testing.T) {
	tests := []struct {
		op      Opcode
		valid   bool
		control bool
		name    string
	}{
		{OpContinuation, true, false, "continuation"},
		{OpText, true, false, "text"},
		{OpBinary, true, false, "binary"},
		{OpClose, true, true, "close"},
		{OpPing, true, true, "ping"},
		{OpPong, true, true, "pong"},
		{Opcode(0x3), false, false, "unknown(0x3)"},
		{Opcode(0xB), false, true, "unknown(0xB)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.IsValid(); got != tt.valid {
				t.Errorf("IsValid = %v, want %v", got, tt.valid)
			}
			if got := tt.op.IsControl(); got != tt.control {
				t.Errorf("IsControl = %v, want %v", got, tt.control)
			}
			if got := tt.op.String(); got != tt.name {
				t.Errorf("String = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestFrameString(t *testing.T) {
	f := NewFrame(OpText, []byte("Hello"))
	want := "Frame{FIN=true, Opcode=text, Masked=false, Length=5}"
	if got := f.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}
