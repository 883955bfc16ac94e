package server

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func captureLine(t *testing.T, conn, dir, kind string, payload []byte, at time.Time) string {
	t.Helper()
	data, err := json.Marshal(MessageCapture{
		Timestamp:  at,
		ConnID:     conn,
		RemoteAddr: "127.0.0.1:5000",
		Direction:  dir,
		Kind:       kind,
		PayloadLen: len(payload),
		PayloadHex: hex.EncodeToString(payload),
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestReadAndSummarizeCaptures(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	input := strings.Join([]string{
		captureLine(t, "a", directionReceived, "text", []byte("hello"), t0),
		captureLine(t, "a", directionSent, "text", []byte("hello"), t0.Add(time.Millisecond)),
		"",
		captureLine(t, "b", directionReceived, "binary", []byte{1, 2, 3}, t0.Add(time.Second)),
		captureLine(t, "a", directionReceived, "text", []byte{0xff}, t0.Add(2*time.Second)),
	}, "\n")

	msgs, err := ReadCaptures(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}

	sums := SummarizeCaptures(msgs)
	if len(sums) != 2 || sums[0].ConnID != "a" || sums[1].ConnID != "b" {
		t.Fatalf("summaries = %+v", sums)
	}
	a := sums[0]
	if a.Received != 2 || a.Sent != 1 || a.Text != 3 || a.Bytes != 11 || a.InvalidText != 1 {
		t.Errorf("conn a = %+v", a)
	}
	if !a.First.Equal(t0) || !a.Last.Equal(t0.Add(2*time.Second)) {
		t.Errorf("conn a span = %v..%v", a.First, a.Last)
	}
	if sums[1].Binary != 1 || sums[1].Bytes != 3 {
		t.Errorf("conn b = %+v", sums[1])
	}
}

func TestReadCapturesReportsLine(t *testing.T) {
	input := captureLine(t, "a", directionReceived, "text", []byte("x"), time.Now()) + "\n{not json\n"
	msgs, err := ReadCaptures(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error = %v, want line 2", err)
	}
	if len(msgs) != 1 {
		t.Errorf("parsed %d messages before the error, want 1", len(msgs))
	}
}

func TestHexDump(t *testing.T) {
	got := HexDump([]byte("hello, websocket world"))
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "0000  68 65 6c 6c 6f 2c 20 77  65 62") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "|hello, websocket|") {
		t.Errorf("line 0 ascii = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0010  ") || !strings.HasSuffix(lines[1], "| world|") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if HexDump(nil) != "" {
		t.Error("empty payload should give an empty dump")
	}
}
