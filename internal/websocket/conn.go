package websocket

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/buffer"
	"github.com/muurk/wsproto/internal/dispatch"
	"github.com/muurk/wsproto/internal/fragment"
	"github.com/muurk/wsproto/internal/handshake"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/outbound"
	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/stats"
	"github.com/muurk/wsproto/internal/transport"
)

const initialReadBuffer = 4096

// Conn is one WebSocket connection, client or server side. All state lives
// behind mu; handler calls are queued under mu and delivered after it is
// released, in order, through the executor.
type Conn struct {
	id        string
	role      protocol.Role
	cfg       Config
	handler   Handler
	transport transport.Transport
	exec      dispatch.Executor
	ownExec   *dispatch.Serial

	mu       sync.Mutex
	state    ReadyState
	opened   bool
	inbuf    *buffer.Accumulator
	decoder  protocol.Decoder
	encoder  protocol.Encoder
	reasm    fragment.Reassembler
	out      *outbound.Scheduler
	pings    pingTable
	counters stats.Counters

	// client handshake
	url     *url.URL
	request *handshake.Request
	// server handshake
	serverReq *http.Request

	subprotocol string

	closeSent       bool
	closeRecv       bool
	peerCode        protocol.CloseCode
	peerReason      string
	closeAfterFlush bool
	transportDone   bool
	terminated      bool

	handshakeTimer *time.Timer
	closeTimer     *time.Timer
	pingTimer      *time.Timer
	pongTimer      *time.Timer
	awaitingPong   bool
	keepaliveSeq   uint64

	events     *queue.Queue
	delivering bool
}

// NewClient returns a client connection to u (ws, wss, http or https),
// carried over a TCP transport built from cfg. Call Open to connect.
func NewClient(u *url.URL, h Handler, cfg Config) (*Conn, error) {
	if err := checkURL(u); err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		port = handshake.DefaultPort(u.Scheme)
	}
	addr := net.JoinHostPort(u.Hostname(), port)
	t := transport.NewClient(addr, handshake.IsSecureScheme(u.Scheme), u.Hostname(), cfg.Dialer, cfg.Transport)
	return NewClientWithTransport(u, t, h, cfg)
}

// NewClientWithTransport returns a client connection over t, which must not
// be opened yet.
func NewClientWithTransport(u *url.URL, t transport.Transport, h Handler, cfg Config) (*Conn, error) {
	if err := checkURL(u); err != nil {
		return nil, err
	}
	c, err := newConn(protocol.RoleClient, t, h, cfg)
	if err != nil {
		return nil, err
	}
	c.url = u
	return c, nil
}

// NewServer returns a server connection answering req over t. t carries the
// already accepted stream; Open validates req and writes the response.
func NewServer(req *http.Request, t transport.Transport, h Handler, cfg Config) (*Conn, error) {
	if req == nil {
		return nil, errors.New("websocket: nil request")
	}
	c, err := newConn(protocol.RoleServer, t, h, cfg)
	if err != nil {
		return nil, err
	}
	c.serverReq = req
	return c, nil
}

func checkURL(u *url.URL) error {
	if u == nil {
		return errors.New("websocket: nil URL")
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("websocket: unsupported URL scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("websocket: URL %q has no host", u)
	}
	return nil
}

func newConn(role protocol.Role, t transport.Transport, h Handler, cfg Config) (*Conn, error) {
	if t == nil {
		return nil, errors.New("websocket: nil transport")
	}
	if h == nil {
		h = HandlerFuncs{}
	}
	cfg = cfg.withDefaults()

	c := &Conn{
		id:        uuid.NewString(),
		role:      role,
		cfg:       cfg,
		handler:   h,
		transport: t,
		exec:      cfg.Executor,
		state:     Connecting,
		inbuf:     buffer.New(initialReadBuffer),
		decoder:   protocol.Decoder{Role: role, MaxPayload: cfg.maxPayload()},
		encoder:   protocol.Encoder{Role: role, Rand: cfg.Rand},
		reasm: fragment.Reassembler{
			MaxMessageSize: cfg.reassemblyLimit(),
			ValidateUTF8:   !cfg.SkipUTF8Validation,
		},
		out:    outbound.New(),
		pings:  newPingTable(),
		events: queue.New(),
	}
	if c.exec == nil {
		c.ownExec = dispatch.NewSerial()
		c.exec = c.ownExec
	}
	return c, nil
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string {
	return c.id
}

// IsClient reports whether this is the client side.
func (c *Conn) IsClient() bool {
	return c.role == protocol.RoleClient
}

// URL returns the client target, or nil on the server side.
func (c *Conn) URL() *url.URL {
	return c.url
}

// Request returns the upgrade request a server connection answers, or nil
// on the client side.
func (c *Conn) Request() *http.Request {
	return c.serverReq
}

// ReadyState returns the current lifecycle state.
func (c *Conn) ReadyState() ReadyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subprotocol returns the negotiated subprotocol, empty when none.
func (c *Conn) Subprotocol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subprotocol
}

// RemoteAddr returns the peer address when the transport exposes it.
func (c *Conn) RemoteAddr() net.Addr {
	if ra, ok := c.transport.(interface{ RemoteAddr() net.Addr }); ok {
		return ra.RemoteAddr()
	}
	return nil
}

// ByteCounts returns the bytes handed to and read from the transport.
func (c *Conn) ByteCounts() (sent, received stats.ByteCount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters.Sent, c.counters.Received
}

// ResetByteCounts zeroes both byte counters. It is valid in every state.
func (c *Conn) ResetByteCounts() {
	c.mu.Lock()
	c.counters.Reset()
	c.mu.Unlock()
}

// BufferedAmount returns the bytes queued for sending that the transport has
// not accepted yet.
func (c *Conn) BufferedAmount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Buffered()
}

// SetSecurityOptions replaces the transport security options. It is only
// allowed before Open.
func (c *Conn) SetSecurityOptions(opts transport.SecurityOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened || c.state != Connecting {
		return &StateError{Op: "SetSecurityOptions", State: c.state}
	}
	c.cfg.Security = &opts
	return nil
}

// Open starts the transport and the opening handshake. It may be called once.
func (c *Conn) Open() error {
	c.mu.Lock()
	if c.opened || c.state != Connecting {
		st := c.state
		c.mu.Unlock()
		return &StateError{Op: "Open", State: st}
	}
	if c.cfg.Security != nil {
		s, ok := c.transport.(transport.Securable)
		if !ok {
			c.mu.Unlock()
			return ErrNoSecuritySupport
		}
		if err := s.SetSecurityOptions(*c.cfg.Security); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("applying security options: %w", err)
		}
	}
	c.opened = true
	if d := c.cfg.HandshakeTimeout; d > 0 {
		c.handshakeTimer = time.AfterFunc(d, c.handshakeTimedOut)
	}
	c.mu.Unlock()

	logging.LogConnection(c.id, "open", zap.Stringer("role", c.role))
	if err := c.transport.Open(c); err != nil {
		c.mu.Lock()
		c.transportDone = true
		c.failLocked(fmt.Errorf("opening transport: %w", err), false)
		c.unlockAndDeliver()
		return err
	}
	return nil
}

// Send queues msg. It is only allowed while OPEN.
func (c *Conn) Send(msg Message) error {
	var op protocol.Opcode
	switch msg.Kind {
	case TextMessage:
		if !utf8.Valid(msg.Data) {
			return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidMessage)
		}
		op = protocol.OpText
	case BinaryMessage:
		op = protocol.OpBinary
	default:
		return fmt.Errorf("%w: kind %d", ErrInvalidMessage, msg.Kind)
	}

	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.state != Open {
		return &StateError{Op: "Send", State: c.state}
	}
	for _, f := range protocol.Fragment(op, msg.Data, c.cfg.FragmentSize) {
		if err := c.enqueueFrame(f, outbound.KindData); err != nil {
			return err
		}
	}
	c.flushLocked()
	return nil
}

// SendText queues a text message.
func (c *Conn) SendText(s string) error {
	return c.Send(NewText(s))
}

// SendBinary queues a binary message.
func (c *Conn) SendBinary(b []byte) error {
	return c.Send(NewBinary(b))
}

// Ping sends a ping carrying data. handler, when not nil, runs once on the
// executor when a pong with the same payload arrives; pings with an empty
// payload are answered in the order they were sent. A ping that is never
// answered never runs its handler.
func (c *Conn) Ping(data []byte, handler PingHandler) error {
	if len(data) > protocol.MaxControlPayload {
		return fmt.Errorf("ping: %w", protocol.ErrControlTooLong)
	}
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.state != Open {
		return &StateError{Op: "Ping", State: c.state}
	}
	payload := append([]byte(nil), data...)
	if err := c.enqueueFrame(protocol.NewFrame(protocol.OpPing, payload), outbound.KindControl); err != nil {
		return err
	}
	if handler != nil {
		c.pings.add(payload, pingEntry{handler: handler})
	}
	c.flushLocked()
	return nil
}

// Close starts the closing handshake with CloseNormal and no reason.
func (c *Conn) Close() error {
	return c.CloseWithReason(protocol.CloseNormal, "")
}

// CloseWithReason starts the closing handshake. While CONNECTING it aborts
// the handshake and reports OnClose with wasClean false. While CLOSING or
// CLOSED it does nothing. The reason is cut to 123 bytes.
func (c *Conn) CloseWithReason(code protocol.CloseCode, reason string) error {
	if code != protocol.CloseNoStatus && !code.Sendable() {
		return fmt.Errorf("%w: %d", ErrInvalidCloseCode, uint16(code))
	}
	if !utf8.ValidString(reason) {
		return fmt.Errorf("%w: close reason is not valid UTF-8", ErrInvalidMessage)
	}
	reason = protocol.TruncateReason(reason)

	c.mu.Lock()
	defer c.unlockAndDeliver()

	switch c.state {
	case Connecting:
		logging.LogConnection(c.id, "close_before_open", zap.Uint16("code", uint16(code)))
		c.finishLocked(closeEvent(code, reason, false))
		if c.opened {
			c.abortTransportLocked()
		}
	case Open:
		c.sendCloseLocked(code, reason)
		c.setStateLocked(Closing)
		c.startCloseTimerLocked()
		c.flushLocked()
	}
	return nil
}

func (c *Conn) enqueueFrame(f protocol.Frame, kind outbound.Kind) error {
	wire, err := c.encoder.Encode(f)
	if err != nil {
		return err
	}
	if err := c.out.Enqueue(wire, kind); err != nil {
		return err
	}
	if logging.DebugEnabled() {
		logging.LogFrame(c.id, "send", f.Opcode.String(), f.Fin, len(f.Payload))
	}
	return nil
}

// flushLocked hands queued bytes to the transport and closes it once
// everything is out when a close was requested.
func (c *Conn) flushLocked() {
	if c.transportDone {
		return
	}
	n, err := c.out.Flush(c.transport)
	c.counters.AddSent(n)
	if err != nil && !errors.Is(err, transport.ErrClosed) {
		logging.Debug("Transport write failed", zap.String("conn_id", c.id), zap.Error(err))
	}
	if c.closeAfterFlush && c.out.Flushed() {
		c.closeAfterFlush = false
		c.transport.Close()
	}
}

// shutdownTransportLocked closes the transport once queued bytes are written.
func (c *Conn) shutdownTransportLocked() {
	if c.transportDone {
		return
	}
	c.closeAfterFlush = true
	c.flushLocked()
}

func (c *Conn) abortTransportLocked() {
	c.out.Discard()
	c.closeAfterFlush = false
	if !c.transportDone {
		c.transport.Abort()
	}
}

func (c *Conn) setStateLocked(s ReadyState) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	logging.LogStateChange(c.id, from.String(), s.String())
}
