package handshake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// IsUpgradeRequest reports whether h carries the headers of a WebSocket
// upgrade attempt: Upgrade: websocket, a Connection header with the upgrade
// token, and a Sec-WebSocket-Key. It does not validate the key or version.
func IsUpgradeRequest(h http.Header) bool {
	return HeaderContainsToken(h, HeaderUpgrade, upgradeToken) &&
		HeaderContainsToken(h, HeaderConnection, connectionUpgrade) &&
		h.Get(HeaderKey) != ""
}

// ValidateRequest checks an incoming upgrade request and returns its key.
func ValidateRequest(req *http.Request) (string, error) {
	if req.Method != http.MethodGet {
		return "", failf(http.StatusMethodNotAllowed, ErrBadMethod, "%s", req.Method)
	}
	if !req.ProtoAtLeast(1, 1) {
		return "", failf(http.StatusBadRequest, ErrBadProto, "%s", req.Proto)
	}
	if req.Host == "" {
		return "", fail(http.StatusBadRequest, ErrMissingHost)
	}
	if !HeaderContainsToken(req.Header, HeaderUpgrade, upgradeToken) {
		return "", failf(http.StatusBadRequest, ErrMissingUpgrade, "%q", req.Header.Get(HeaderUpgrade))
	}
	if !HeaderContainsToken(req.Header, HeaderConnection, connectionUpgrade) {
		return "", failf(http.StatusBadRequest, ErrMissingConnection, "%q", req.Header.Get(HeaderConnection))
	}
	if v := req.Header.Get(HeaderVersion); v != Version {
		return "", failf(http.StatusUpgradeRequired, ErrBadVersion, "%q", v)
	}

	key := strings.TrimSpace(req.Header.Get(HeaderKey))
	if key == "" {
		return "", fail(http.StatusBadRequest, ErrMissingKey)
	}
	nonce, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(nonce) != 16 {
		return "", failf(http.StatusBadRequest, ErrBadKey, "%q", key)
	}
	return key, nil
}

// NegotiateSubprotocol returns the first protocol in supported that the
// client offered, or empty when there is none in common.
func NegotiateSubprotocol(offered, supported []string) string {
	for _, s := range supported {
		for _, o := range offered {
			if o == s {
				return s
			}
		}
	}
	return ""
}

// BuildAcceptResponse renders the 101 response for a validated key.
func BuildAcceptResponse(key, subprotocol string, extra http.Header) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", switchingProtocols)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderUpgrade, upgradeToken)
	fmt.Fprintf(&b, "%s: Upgrade\r\n", HeaderConnection)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderAccept, ComputeAccept(key))
	if subprotocol != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", HeaderProtocol, subprotocol)
	}
	writeHeaders(&b, extra)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// BuildRejectResponse renders the error response for a failed validation.
// A version mismatch advertises the supported version as RFC 6455 requires.
func BuildRejectResponse(err error) []byte {
	status := http.StatusBadRequest
	var he *HandshakeError
	if errors.As(err, &he) && he.Status != 0 {
		status = he.Status
	}
	body := http.StatusText(status)
	if err != nil {
		body = err.Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	if errors.Is(err, ErrBadVersion) {
		fmt.Fprintf(&b, "%s: %s\r\n", HeaderVersion, Version)
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
