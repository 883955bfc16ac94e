package protocol

import (
	"errors"
	"fmt"
)

// Frame-level violations.
var (
	ErrReservedBits      = errors.New("reserved bits set without a negotiated extension")
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrUnmaskedFrame     = errors.New("client frame is not masked")
	ErrMaskedFrame       = errors.New("server frame is masked")
	ErrNonMinimalLength  = errors.New("payload length not minimally encoded")
	ErrLengthOverflow    = errors.New("payload length has the most significant bit set")
	ErrFragmentedControl = errors.New("control frame is fragmented")
	ErrControlTooLong    = errors.New("control frame payload exceeds 125 bytes")
	ErrMessageTooBig     = errors.New("message exceeds maximum size")
)

// Message-level violations.
var (
	ErrUnexpectedContinuation = errors.New("continuation frame without a message in progress")
	ErrInterleavedMessage     = errors.New("new data frame before the fragmented message completed")
	ErrInvalidUTF8            = errors.New("text payload is not valid UTF-8")
	ErrInvalidCloseCode       = errors.New("invalid close code")
	ErrShortClosePayload      = errors.New("close payload of one byte")
)

// violationCodes is the RFC 6455 section 7.4.1 mapping used when failing a
// connection for a given violation.
var violationCodes = map[error]CloseCode{
	ErrReservedBits:           CloseProtocolError,
	ErrUnknownOpcode:          CloseProtocolError,
	ErrUnmaskedFrame:          CloseProtocolError,
	ErrMaskedFrame:            CloseProtocolError,
	ErrNonMinimalLength:       CloseProtocolError,
	ErrLengthOverflow:         CloseProtocolError,
	ErrFragmentedControl:      CloseProtocolError,
	ErrControlTooLong:         CloseProtocolError,
	ErrMessageTooBig:          CloseMessageTooBig,
	ErrUnexpectedContinuation: CloseProtocolError,
	ErrInterleavedMessage:     CloseProtocolError,
	ErrInvalidUTF8:            CloseInvalidPayload,
	ErrInvalidCloseCode:       CloseProtocolError,
	ErrShortClosePayload:      CloseProtocolError,
}

// ProtocolError is a violation of the framing rules by the peer. Code is the
// close code the connection is failed with.
type ProtocolError struct {
	Code CloseCode
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error (%d %s): %v", uint16(e.Code), e.Code, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Violation wraps one of the package's sentinel errors in a ProtocolError with
// its mapped close code. Unknown errors map to CloseProtocolError.
func Violation(err error) *ProtocolError {
	code, ok := violationCodes[err]
	if !ok {
		code = CloseProtocolError
	}
	return &ProtocolError{Code: code, Err: err}
}

// violationf wraps a sentinel with extra context while keeping its close code.
func violationf(sentinel error, format string, args ...any) *ProtocolError {
	pe := Violation(sentinel)
	pe.Err = fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
	return pe
}

// CloseCodeFor returns the close code to send when failing a connection with
// err: the ProtocolError code when err wraps one, CloseInternalError otherwise.
func CloseCodeFor(err error) CloseCode {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return CloseInternalError
}
