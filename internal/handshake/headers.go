package handshake

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	// GUID is appended to the client key before hashing.
	GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	// Version is the only protocol version spoken.
	Version = "13"
	// MaxHeaderSize bounds the request or response head, terminator included.
	MaxHeaderSize = 8192
)

// Header names used by the handshake.
const (
	HeaderUpgrade      = "Upgrade"
	HeaderConnection   = "Connection"
	HeaderKey          = "Sec-WebSocket-Key"
	HeaderAccept       = "Sec-WebSocket-Accept"
	HeaderVersion      = "Sec-WebSocket-Version"
	HeaderProtocol     = "Sec-WebSocket-Protocol"
	HeaderExtensions   = "Sec-WebSocket-Extensions"
	HeaderOrigin       = "Origin"
	headerTerminator   = "\r\n\r\n"
	upgradeToken       = "websocket"
	connectionUpgrade  = "upgrade"
	switchingProtocols = "101 Switching Protocols"
)

// reservedHeaders are written by the handshake itself and cannot be overridden
// by caller supplied headers.
var reservedHeaders = map[string]bool{
	"Host":           true,
	HeaderUpgrade:    true,
	HeaderConnection: true,
	HeaderKey:        true,
	HeaderVersion:    true,
	HeaderProtocol:   true,
}

// HeaderTokens returns the comma-separated tokens of every value of name,
// trimmed. Token case is preserved.
func HeaderTokens(h http.Header, name string) []string {
	var out []string
	for _, v := range h.Values(name) {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// HeaderContainsToken reports whether name carries token, compared without
// regard to case.
func HeaderContainsToken(h http.Header, name, token string) bool {
	for _, tok := range HeaderTokens(h, name) {
		if strings.EqualFold(tok, token) {
			return true
		}
	}
	return false
}

// headEnd returns the length of the HTTP head at the front of buf including
// the blank line, or -1 when the terminator has not arrived yet.
func headEnd(buf []byte) int {
	i := bytes.Index(buf, []byte(headerTerminator))
	if i < 0 {
		return -1
	}
	return i + len(headerTerminator)
}

// writeHeaders appends h in sorted key order, skipping reserved names.
func writeHeaders(b *strings.Builder, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		if reservedHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(b, "%s: %s\r\n", http.CanonicalHeaderKey(k), sanitize(v))
		}
	}
}

// sanitize drops CR and LF so a header value cannot split the message.
func sanitize(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// ParseRequest reads an HTTP request head incrementally. It returns
// (nil, 0, nil) until the full head has arrived; consumed is the length of
// the head, so bytes after it stay with the caller.
func ParseRequest(buf []byte) (*http.Request, int, error) {
	end := headEnd(buf)
	if end < 0 {
		if len(buf) >= MaxHeaderSize {
			return nil, 0, fail(http.StatusRequestHeaderFieldsTooLarge, ErrHeaderTooLarge)
		}
		return nil, 0, nil
	}
	if end > MaxHeaderSize {
		return nil, 0, fail(http.StatusRequestHeaderFieldsTooLarge, ErrHeaderTooLarge)
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(buf[:end])))
	if err != nil {
		return nil, 0, failf(http.StatusBadRequest, ErrMalformed, "%v", err)
	}
	return req, end, nil
}

// ParseResponse reads an HTTP response head incrementally, with the same
// contract as ParseRequest.
func ParseResponse(buf []byte, req *http.Request) (*http.Response, int, error) {
	end := headEnd(buf)
	if end < 0 {
		if len(buf) >= MaxHeaderSize {
			return nil, 0, fail(0, ErrHeaderTooLarge)
		}
		return nil, 0, nil
	}
	if end > MaxHeaderSize {
		return nil, 0, fail(0, ErrHeaderTooLarge)
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(buf[:end])), req)
	if err != nil {
		return nil, 0, failf(0, ErrMalformed, "%v", err)
	}
	return resp, end, nil
}
