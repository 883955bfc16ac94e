package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/buffer"
	"github.com/muurk/wsproto/internal/handshake"
	"github.com/muurk/wsproto/internal/logging"
)

var errNotFound = errors.New("no WebSocket endpoint at this path")

// readUpgradeRequest reads the HTTP request head from conn. It returns the
// request and any bytes the client sent after the head.
func readUpgradeRequest(conn net.Conn, timeout time.Duration) (*http.Request, []byte, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, nil, err
		}
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	}

	acc := buffer.New(1024)
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			acc.Write(chunk[:n])
			req, consumed, perr := handshake.ParseRequest(acc.Bytes())
			if perr != nil {
				return nil, nil, perr
			}
			if req != nil {
				acc.Consume(consumed)
				rest := append([]byte(nil), acc.Bytes()...)
				return req, rest, nil
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, nil, fmt.Errorf("reading upgrade request: %w", handshake.ErrTimeout)
			}
			return nil, nil, fmt.Errorf("reading upgrade request: %w", err)
		}
	}
}

// writeReject answers a request the server will not upgrade and closes conn.
func writeReject(conn net.Conn, remoteAddr string, err error) {
	resp := handshake.BuildRejectResponse(err)
	logging.LogRawBytes("HTTP reject response", resp)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, werr := conn.Write(resp); werr != nil {
		logging.Debug("Failed to write reject response",
			zap.String("remote_addr", remoteAddr),
			zap.Error(werr),
		)
	}
}

// LogHTTPRequestDetails logs all details of an HTTP request
func LogHTTPRequestDetails(req *http.Request, remoteAddr string) {
	headers := make(map[string]string)
	for key, values := range req.Header {
		headers[key] = strings.Join(values, ", ")
	}

	logging.LogHTTPRequest(remoteAddr, req.Method, req.URL.Path, headers)

	logging.Debug("WebSocket upgrade request details",
		zap.String("remote_addr", remoteAddr),
		zap.String("host", req.Host),
		zap.String("origin", req.Header.Get("Origin")),
		zap.String("sec_websocket_key", req.Header.Get(handshake.HeaderKey)),
		zap.String("sec_websocket_version", req.Header.Get(handshake.HeaderVersion)),
		zap.String("sec_websocket_protocol", req.Header.Get(handshake.HeaderProtocol)),
		zap.String("user_agent", req.Header.Get("User-Agent")),
	)
}
