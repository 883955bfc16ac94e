package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/websocket"
)

// Capture directions
const (
	directionReceived = "client->server"
	directionSent     = "server->client"
)

// MessageCapture is one message written to the capture directory
type MessageCapture struct {
	Timestamp    time.Time `json:"timestamp"`
	ConnID       string    `json:"conn_id"`
	MessageNum   int       `json:"message_num"`
	RemoteAddr   string    `json:"remote_addr"`
	Direction    string    `json:"direction"`
	Kind         string    `json:"kind"`
	PayloadLen   int       `json:"payload_length"`
	PayloadHex   string    `json:"payload_hex"`
	PayloadAscii string    `json:"payload_ascii"`
}

// captureWriter appends messages as JSON lines to one file per server run.
// A zero dir disables it.
type captureWriter struct {
	mu       sync.Mutex
	filename string
}

func newCaptureWriter(dir string) (*captureWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating capture directory: %w", err)
	}
	name := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	return &captureWriter{filename: name}, nil
}

func (w *captureWriter) save(c *websocket.Conn, num int, direction string, msg websocket.Message) {
	if w == nil {
		return
	}

	record := MessageCapture{
		Timestamp:    time.Now(),
		ConnID:       c.ID(),
		MessageNum:   num,
		Direction:    direction,
		Kind:         msg.Kind.String(),
		PayloadLen:   len(msg.Data),
		PayloadHex:   hex.EncodeToString(msg.Data),
		PayloadAscii: toASCII(msg.Data),
	}
	if addr := c.RemoteAddr(); addr != nil {
		record.RemoteAddr = addr.String()
	}

	data, err := json.Marshal(record)
	if err != nil {
		logging.Error("Failed to marshal message capture", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Failed to open capture file",
			zap.String("filename", w.filename),
			zap.Error(err),
		)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("filename", w.filename),
			zap.Error(err),
		)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
