package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/muurk/wsproto/internal/protocol"
)

func TestNewCloseResult(t *testing.T) {
	tests := []struct {
		name     string
		code     protocol.CloseCode
		reason   string
		clean    bool
		wantType ResultType
		contains []string
	}{
		{"clean", protocol.CloseNormal, "bye", true, ResultSuccess, []string{"Connection closed", "1000", "bye"}},
		{"unclean", protocol.CloseAbnormal, "", false, ResultWarning, []string{"WARNING", "1006"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCloseResult(tt.code, tt.reason, tt.clean)
			if r.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", r.Type, tt.wantType)
			}
			out := r.SetWidth(80).Render()
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("render missing %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestFailureResultRender(t *testing.T) {
	err := errors.New("x509: certificate signed by unknown authority")
	r := NewFailureResult("Connection failed", err, Troubleshoot(err))
	out := r.SetWidth(90).Render()
	for _, s := range []string{"FAILED", "unknown authority", "Troubleshooting", "--ca-file"} {
		if !strings.Contains(out, s) {
			t.Errorf("render missing %q:\n%s", s, out)
		}
	}
}

func TestTroubleshoot(t *testing.T) {
	if Troubleshoot(errors.New("something else")) != nil {
		t.Error("expected no hints for an unknown error")
	}
	if len(Troubleshoot(errors.New("dial tcp: connect: connection refused"))) == 0 {
		t.Error("expected hints for a refused connection")
	}
}

func TestHeaderRenderSortsParams(t *testing.T) {
	h := NewHeader("WebSocket session", "wss://example.com/", map[string]string{
		"TLS":         "1.3",
		"Subprotocol": "chat",
	}).SetWidth(80)
	out := h.Render()
	if !strings.Contains(out, "WEBSOCKET SESSION") || !strings.Contains(out, "wss://example.com/") {
		t.Fatalf("render:\n%s", out)
	}
	if strings.Index(out, "Subprotocol") > strings.Index(out, "TLS") {
		t.Error("params not sorted")
	}
}

func TestLinePrinter(t *testing.T) {
	var buf strings.Builder
	lp := NewLinePrinter(&buf)
	lp.Sent(Command{Kind: CmdText, Text: "hi"})
	lp.Pong([]byte("p"), 0)
	lp.OnClose(nil, protocol.CloseNormal, "", true)
	lp.OnClose(nil, protocol.CloseAbnormal, "", false)

	select {
	case <-lp.Done():
	default:
		t.Fatal("Done not closed after OnClose")
	}
	if r := lp.Result(); r == nil || r.Type != ResultSuccess {
		t.Errorf("Result = %+v, want the first close", r)
	}
	out := buf.String()
	for _, s := range []string{"→ hi", `pong "p"`, "Connection closed"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}
	if strings.Count(out, "Connection closed") != 1 {
		t.Error("result printed more than once")
	}
}
