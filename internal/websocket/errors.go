package websocket

import (
	"errors"
	"fmt"
)

var (
	// ErrClosedBeforeOpen is reported when the transport ends during the
	// opening handshake.
	ErrClosedBeforeOpen = errors.New("connection closed before the handshake completed")
	// ErrInvalidCloseCode is returned by Close for a code that may not be sent.
	ErrInvalidCloseCode = errors.New("close code may not be sent")
	// ErrNoSecuritySupport is returned by Open when security options are set
	// on a transport that cannot apply them.
	ErrNoSecuritySupport = errors.New("transport does not accept security options")
	// ErrInvalidMessage is returned by Send for a message with an unknown
	// kind or a text message that is not UTF-8.
	ErrInvalidMessage = errors.New("invalid message")
)

// StateError is returned when an operation is invoked in a ready state that
// does not allow it.
type StateError struct {
	Op    string
	State ReadyState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("websocket: %s not allowed in state %s", e.Op, e.State)
}
