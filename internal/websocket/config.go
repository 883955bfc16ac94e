package websocket

import (
	"io"
	"net/http"
	"time"

	"github.com/muurk/wsproto/internal/dispatch"
	"github.com/muurk/wsproto/internal/transport"
)

// Defaults used by DefaultConfig.
const (
	DefaultMaxMessageSize   = 32 << 20
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultCloseTimeout     = 5 * time.Second
	DefaultPongTimeout      = 10 * time.Second
)

// Config tunes a connection. The zero value is usable; zero fields take the
// defaults noted on each.
type Config struct {
	// MaxMessageSize bounds a single inbound frame and a reassembled
	// message. Exceeding it fails the connection with 1009. Default 32 MiB;
	// negative disables the limit.
	MaxMessageSize int
	// FragmentSize splits outbound messages into frames of at most this many
	// payload bytes. Zero sends each message as one frame.
	FragmentSize int
	// SkipUTF8Validation turns off UTF-8 checks of inbound text messages.
	SkipUTF8Validation bool

	// HandshakeTimeout bounds the time from Open to OPEN. Default 30s;
	// negative disables it.
	HandshakeTimeout time.Duration
	// CloseTimeout bounds the wait for the closing handshake after a close
	// frame was sent. Default 5s; negative disables it.
	CloseTimeout time.Duration
	// PingInterval enables keepalive pings when positive.
	PingInterval time.Duration
	// PongTimeout fails the connection when a keepalive ping is not answered
	// in time. Default 10s.
	PongTimeout time.Duration

	// Subprotocols is the client's offer, or the server's supported list in
	// order of preference.
	Subprotocols []string
	// Header is sent with the client request or the server 101 response.
	Header http.Header

	// Executor delivers handler calls. Nil starts a dedicated serial
	// executor per connection.
	Executor dispatch.Executor
	// Rand supplies handshake keys and mask keys. Nil uses crypto/rand.
	Rand io.Reader

	// Security configures TLS for client transports. Applied once by Open.
	Security *transport.SecurityOptions
	// Dialer and Transport tune the transport built by NewClient.
	Dialer    *transport.Dialer
	Transport transport.Options
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.PongTimeout == 0 {
		c.PongTimeout = DefaultPongTimeout
	}
	return c
}

func (c Config) maxPayload() uint64 {
	if c.MaxMessageSize < 0 {
		return 0
	}
	return uint64(c.MaxMessageSize)
}

func (c Config) reassemblyLimit() int {
	if c.MaxMessageSize < 0 {
		return 0
	}
	return c.MaxMessageSize
}
