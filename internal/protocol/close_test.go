package protocol

import (
	"errors"
	"strings"
	"testing"
)

func TestClosePayload(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		wantCode   CloseCode
		wantReason string
		wantErr    error
	}{
		{name: "empty", payload: nil, wantCode: CloseNoStatus},
		{name: "code only", payload: []byte{0x03, 0xE8}, wantCode: CloseNormal},
		{name: "code and reason", payload: append([]byte{0x03, 0xE8}, "bye"...), wantCode: CloseNormal, wantReason: "bye"},
		{name: "private code", payload: []byte{0x0F, 0xA0}, wantCode: 4000},
		{name: "one byte", payload: []byte{0x03}, wantErr: ErrShortClosePayload},
		{name: "reserved 1005", payload: []byte{0x03, 0xED}, wantErr: ErrInvalidCloseCode},
		{name: "reserved 1006", payload: []byte{0x03, 0xEE}, wantErr: ErrInvalidCloseCode},
		{name: "below 1000", payload: []byte{0x00, 0x64}, wantErr: ErrInvalidCloseCode},
		{name: "unassigned 2000", payload: []byte{0x07, 0xD0}, wantErr: ErrInvalidCloseCode},
		{name: "bad utf8 reason", payload: []byte{0x03, 0xE8, 0xFF, 0xFE}, wantErr: ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, reason, err := DecodeClosePayload(tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if code != tt.wantCode || reason != tt.wantReason {
				t.Errorf("got (%d, %q), want (%d, %q)", code, reason, tt.wantCode, tt.wantReason)
			}
		})
	}
}

func TestEncodeClosePayload(t *testing.T) {
	p := EncodeClosePayload(CloseNormal, "bye")
	code, reason, err := DecodeClosePayload(p)
	if err != nil || code != CloseNormal || reason != "bye" {
		t.Fatalf("got (%d, %q, %v)", code, reason, err)
	}
	if p := EncodeClosePayload(CloseNoStatus, "ignored"); len(p) != 0 {
		t.Errorf("1005 payload = %v, want empty", p)
	}

	long := strings.Repeat("é", 100) // 200 bytes
	p = EncodeClosePayload(CloseGoingAway, long)
	if len(p) > MaxControlPayload {
		t.Fatalf("payload of %d bytes exceeds control limit", len(p))
	}
	if _, _, err := DecodeClosePayload(p); err != nil {
		t.Errorf("truncated reason is invalid: %v", err)
	}
}

func TestCloseCodeFor(t *testing.T) {
	if got := CloseCodeFor(Violation(ErrMessageTooBig)); got != CloseMessageTooBig {
		t.Errorf("got %d", got)
	}
	if got := CloseCodeFor(Violation(ErrInvalidUTF8)); got != CloseInvalidPayload {
		t.Errorf("got %d", got)
	}
	if got := CloseCodeFor(errors.New("boom")); got != CloseInternalError {
		t.Errorf("got %d", got)
	}
}

func TestCloseCodeString(t *testing.T) {
	if CloseNormal.String() != "normal closure" {
		t.Error(CloseNormal.String())
	}
	if CloseCode(4001).String() != "private" {
		t.Error(CloseCode(4001).String())
	}
	if CloseCode(999).Sendable() || CloseTLSHandshake.Sendable() || !CloseCode(3000).Sendable() {
		t.Error("Sendable mismatch")
	}
}
