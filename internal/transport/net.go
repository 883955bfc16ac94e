package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
)

const (
	readBufferSize = 32 * 1024
	// DefaultHighWater is how many unwritten bytes Write buffers before it
	// starts returning short counts.
	DefaultHighWater = 256 * 1024
)

type state int

const (
	stateIdle state = iota
	stateOpening
	stateOpen
	stateClosing
	stateClosed
)

// Options tunes a NetTransport.
type Options struct {
	// HighWater bounds the bytes Write buffers. Zero uses DefaultHighWater.
	HighWater int
	// WriteTimeout bounds each write to the socket. Zero disables it.
	WriteTimeout time.Duration
}

// NetTransport implements Transport over a net.Conn. One goroutine reads,
// another writes buffered bytes, so neither Write nor Close ever blocks on
// the socket.
type NetTransport struct {
	mu           sync.Mutex
	state        state
	conn         net.Conn
	handler      Handler
	pending      []byte
	wantWritable bool
	preread      []byte
	tlsState     *tls.ConnectionState

	// client side
	dialer     *Dialer
	addr       string
	secure     bool
	serverName string
	security   SecurityOptions
	cancel     context.CancelFunc

	highWater    int
	writeTimeout time.Duration
	wake         chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

// NewClient returns a transport that dials addr (host:port) when opened.
// With secure set, the stream is wrapped in TLS verified for serverName
// unless the security options say otherwise.
func NewClient(addr string, secure bool, serverName string, d *Dialer, opts Options) *NetTransport {
	if d == nil {
		d = &Dialer{}
	}
	t := newNetTransport(opts)
	t.dialer = d
	t.addr = addr
	t.secure = secure
	t.serverName = serverName
	return t
}

// NewServer wraps an already accepted (and, for TLS, already handshaken)
// connection. preread holds bytes read past the HTTP request head; they are
// delivered before anything read from conn.
func NewServer(conn net.Conn, preread []byte, opts Options) *NetTransport {
	t := newNetTransport(opts)
	t.conn = conn
	t.preread = preread
	if tc, ok := conn.(*tls.Conn); ok {
		st := tc.ConnectionState()
		t.tlsState = &st
	}
	return t
}

func newNetTransport(opts Options) *NetTransport {
	hw := opts.HighWater
	if hw <= 0 {
		hw = DefaultHighWater
	}
	return &NetTransport{
		highWater:    hw,
		writeTimeout: opts.WriteTimeout,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// SetSecurityOptions installs TLS options. It fails once Open was called.
func (t *NetTransport) SetSecurityOptions(opts SecurityOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateIdle {
		return ErrSecurityAfterOpen
	}
	t.security = opts
	return nil
}

// Open starts the transport. For a client transport it dials and performs
// the TLS handshake in the background.
func (t *NetTransport) Open(h Handler) error {
	if h == nil {
		return errors.New("transport: nil handler")
	}
	t.mu.Lock()
	if t.state != stateIdle {
		t.mu.Unlock()
		return ErrAlreadyOpen
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.handler = h
	t.cancel = cancel
	t.state = stateOpening
	t.mu.Unlock()

	go t.connect(ctx)
	return nil
}

func (t *NetTransport) connect(ctx context.Context) {
	conn := t.conn
	if conn == nil {
		c, err := t.dialer.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			t.finish(fmt.Errorf("dial %s: %w", t.addr, err))
			return
		}
		conn = c
		if t.secure {
			tc, err := t.handshakeTLS(ctx, conn)
			if err != nil {
				conn.Close()
				t.finish(err)
				return
			}
			conn = tc
		}
	}

	t.mu.Lock()
	t.conn = conn
	if t.state != stateOpening {
		// closed while connecting
		t.mu.Unlock()
		t.finish(nil)
		return
	}
	t.state = stateOpen
	pre := t.preread
	t.preread = nil
	t.mu.Unlock()

	logging.Debug("Transport open",
		zap.String("local_addr", conn.LocalAddr().String()),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)

	t.handler.HandleOpen()
	if len(pre) > 0 {
		t.handler.HandleRead(pre)
	}
	go t.writeLoop()
	t.readLoop(conn)
}

func (t *NetTransport) handshakeTLS(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	t.mu.Lock()
	opts := t.security
	t.mu.Unlock()

	host := t.serverName
	if host == "" {
		host, _, _ = net.SplitHostPort(t.addr)
	}
	cfg, err := opts.ClientConfig(host)
	if err != nil {
		return nil, err
	}
	tc := tls.Client(conn, cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("tls handshake with %s: %w", t.addr, err)
	}
	st := tc.ConnectionState()
	t.mu.Lock()
	t.tlsState = &st
	t.mu.Unlock()
	logging.LogTLSHandshake(t.addr, st.Version, st.CipherSuite, st.ServerName)
	return tc, nil
}

func (t *NetTransport) readLoop(conn net.Conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			t.handler.HandleRead(buf[:n])
		}
		if err != nil {
			t.finish(err)
			return
		}
	}
}

func (t *NetTransport) writeLoop() {
	for {
		select {
		case <-t.wake:
		case <-t.done:
			return
		}
		if !t.drain() {
			return
		}
	}
}

// drain writes pending bytes until none remain, then delivers a pending
// writable signal. It returns false once the loop should stop.
func (t *NetTransport) drain() bool {
	for {
		t.mu.Lock()
		chunk := t.pending
		t.pending = nil
		if len(chunk) == 0 {
			notify := t.wantWritable
			t.wantWritable = false
			closing := t.state == stateClosing
			conn := t.conn
			t.mu.Unlock()

			if notify {
				t.handler.HandleWritable()
				continue
			}
			if closing {
				// the read loop observes the close and reports it
				conn.Close()
				return false
			}
			return true
		}
		conn := t.conn
		t.mu.Unlock()

		if t.writeTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		}
		if _, err := conn.Write(chunk); err != nil {
			t.finish(fmt.Errorf("write: %w", err))
			return false
		}
	}
}

// Write buffers up to the high-water mark and returns how much it took.
func (t *NetTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateOpen:
	case stateClosing, stateClosed:
		return 0, ErrClosed
	default:
		return 0, ErrNotOpen
	}

	space := t.highWater - len(t.pending)
	if space <= 0 {
		t.wantWritable = true
		return 0, nil
	}
	n := min(space, len(p))
	t.pending = append(t.pending, p[:n]...)
	if n < len(p) {
		t.wantWritable = true
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return n, nil
}

// Close flushes buffered bytes and closes the stream. HandleClose follows
// with a nil error.
func (t *NetTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateIdle:
		t.state = stateClosed
		if t.conn != nil {
			return t.conn.Close()
		}
	case stateOpening:
		t.state = stateClosing
		t.cancel()
	case stateOpen:
		t.state = stateClosing
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Abort closes the stream without flushing.
func (t *NetTransport) Abort() error {
	t.mu.Lock()
	switch t.state {
	case stateIdle:
		t.state = stateClosed
		t.mu.Unlock()
		if t.conn != nil {
			return t.conn.Close()
		}
		return nil
	case stateClosed:
		t.mu.Unlock()
		return nil
	}
	t.state = stateClosing
	t.pending = nil
	conn := t.conn
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// finish reports the end of the stream exactly once.
func (t *NetTransport) finish(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		local := t.state == stateClosing
		t.state = stateClosed
		t.pending = nil
		conn := t.conn
		cancel := t.cancel
		t.mu.Unlock()

		close(t.done)
		if cancel != nil {
			cancel()
		}
		if conn != nil {
			conn.Close()
		}
		if local || errors.Is(err, io.EOF) {
			err = nil
		}
		if err != nil {
			logging.Debug("Transport closed with error", zap.String("addr", t.describe()), zap.Error(err))
		}
		t.handler.HandleClose(err)
	})
}

func (t *NetTransport) describe() string {
	if t.addr != "" {
		return t.addr
	}
	if ra := t.RemoteAddr(); ra != nil {
		return ra.String()
	}
	return ""
}

// RemoteAddr returns the peer address, or nil before connecting.
func (t *NetTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.RemoteAddr()
}

// TLSState returns the negotiated TLS parameters, or nil for plain streams.
func (t *NetTransport) TLSState() *tls.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tlsState
}

// Buffered returns bytes accepted by Write but not yet written to the socket.
func (t *NetTransport) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
