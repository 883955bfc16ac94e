package transport

import (
	"errors"
)

var (
	ErrClosed            = errors.New("transport closed")
	ErrNotOpen           = errors.New("transport not open")
	ErrAlreadyOpen       = errors.New("transport already opened")
	ErrSecurityAfterOpen = errors.New("security options changed after open")
)

// Handler receives transport events. Callbacks come from transport owned
// goroutines, never from inside Open, Write, Close or Abort. HandleOpen
// precedes every other callback, and HandleClose is the last one and is
// delivered exactly once.
type Handler interface {
	// HandleOpen reports that the stream is connected (and TLS is up).
	HandleOpen()
	// HandleRead delivers bytes in stream order. p is only valid for the
	// duration of the call.
	HandleRead(p []byte)
	// HandleWritable reports that a write that was cut short can be retried.
	HandleWritable()
	// HandleClose reports the end of the stream. err is nil for an orderly
	// end (peer EOF or local Close).
	HandleClose(err error)
}

// Transport is an ordered, event driven byte stream.
type Transport interface {
	// Open starts connecting. Events go to h.
	Open(h Handler) error
	// Write accepts up to len(p) bytes without blocking. A short count with
	// a nil error means the transport is full; HandleWritable follows once
	// there is room again.
	Write(p []byte) (int, error)
	// Close flushes accepted bytes, then ends the stream.
	Close() error
	// Abort ends the stream immediately, discarding unwritten bytes.
	Abort() error
}

// Securable is implemented by transports that accept security options.
type Securable interface {
	SetSecurityOptions(opts SecurityOptions) error
}
