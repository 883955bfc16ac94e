package handshake

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBadMethod            = errors.New("method is not GET")
	ErrBadProto             = errors.New("request is not HTTP/1.1 or later")
	ErrMissingHost          = errors.New("missing Host header")
	ErrMissingUpgrade       = errors.New("missing or invalid Upgrade header")
	ErrMissingConnection    = errors.New("missing or invalid Connection header")
	ErrMissingKey           = errors.New("missing Sec-WebSocket-Key header")
	ErrBadKey               = errors.New("Sec-WebSocket-Key is not a base64 16-byte nonce")
	ErrBadVersion           = errors.New("unsupported Sec-WebSocket-Version")
	ErrBadStatus            = errors.New("unexpected status code")
	ErrBadAccept            = errors.New("Sec-WebSocket-Accept mismatch")
	ErrUnofferedSubprotocol = errors.New("server selected a subprotocol that was not offered")
	ErrUnsupportedExtension = errors.New("server selected an extension that was not offered")
	ErrHeaderTooLarge       = errors.New("handshake header exceeds size limit")
	ErrMalformed            = errors.New("malformed HTTP message")
	ErrTimeout              = errors.New("handshake timed out")
	ErrTrustRejected        = errors.New("peer certificate chain rejected")
)

// HandshakeError is a failed opening handshake. Status is the HTTP status a
// server answers with; on the client it is the status the server returned,
// or zero when no response was parsed.
type HandshakeError struct {
	Err    error
	Status int
}

func (e *HandshakeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("websocket handshake failed (%d %s): %v", e.Status, http.StatusText(e.Status), e.Err)
	}
	return fmt.Sprintf("websocket handshake failed: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

func failf(status int, sentinel error, format string, args ...any) *HandshakeError {
	return &HandshakeError{
		Err:    fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...),
		Status: status,
	}
}

func fail(status int, sentinel error) *HandshakeError {
	return &HandshakeError{Err: sentinel, Status: status}
}
