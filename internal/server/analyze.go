package server

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// CaptureSummary aggregates the captured messages of one connection.
type CaptureSummary struct {
	ConnID     string
	RemoteAddr string
	Received   int
	Sent       int
	Text       int
	Binary     int
	Bytes      int
	// InvalidText counts text messages whose payload is not UTF-8. The engine
	// never delivers those, so a non-zero value means a corrupt capture.
	InvalidText int
	First       time.Time
	Last        time.Time
}

// ReadCaptures parses a capture file written by the server.
func ReadCaptures(r io.Reader) ([]MessageCapture, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 256*1024*1024)

	var out []MessageCapture
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var m MessageCapture
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return out, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("reading captures: %w", err)
	}
	return out, nil
}

// Payload decodes the captured payload.
func (m *MessageCapture) Payload() ([]byte, error) {
	return hex.DecodeString(m.PayloadHex)
}

// SummarizeCaptures groups messages by connection, in order of first
// appearance.
func SummarizeCaptures(msgs []MessageCapture) []CaptureSummary {
	index := make(map[string]int)
	var out []CaptureSummary

	for i := range msgs {
		m := &msgs[i]
		idx, ok := index[m.ConnID]
		if !ok {
			idx = len(out)
			index[m.ConnID] = idx
			out = append(out, CaptureSummary{ConnID: m.ConnID, RemoteAddr: m.RemoteAddr, First: m.Timestamp})
		}
		s := &out[idx]

		switch m.Direction {
		case directionReceived:
			s.Received++
		case directionSent:
			s.Sent++
		}
		switch m.Kind {
		case "text":
			s.Text++
			if payload, err := m.Payload(); err == nil && !utf8.Valid(payload) {
				s.InvalidText++
			}
		case "binary":
			s.Binary++
		}
		s.Bytes += m.PayloadLen
		if m.Timestamp.After(s.Last) {
			s.Last = m.Timestamp
		}
	}
	return out
}

// HexDump renders payload 16 bytes per line with offsets and printable ASCII.
func HexDump(payload []byte) string {
	var b strings.Builder
	for i := 0; i < len(payload); i += 16 {
		fmt.Fprintf(&b, "%04x  ", i)
		for j := 0; j < 16; j++ {
			if i+j < len(payload) {
				fmt.Fprintf(&b, "%02x ", payload[i+j])
			} else {
				b.WriteString("   ")
			}
			if j == 7 {
				b.WriteByte(' ')
			}
		}
		end := min(i+16, len(payload))
		b.WriteString(" |")
		b.WriteString(toASCII(payload[i:end]))
		b.WriteString("|\n")
	}
	return b.String()
}
