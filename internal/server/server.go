package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	proxyproto "github.com/pires/go-proxyproto"
	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/discovery"
	"github.com/muurk/wsproto/internal/handshake"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/transport"
	"github.com/muurk/wsproto/internal/version"
	"github.com/muurk/wsproto/internal/websocket"
)

const (
	// DefaultRequestTimeout bounds reading the upgrade request and the TLS handshake.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultShutdownTimeout bounds the closing handshakes run by Shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// proxyHeaderTimeout bounds reading a PROXY protocol header.
	proxyHeaderTimeout = 5 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int
	Path string // Request path accepting upgrades; empty accepts any path

	TLS          bool
	CertPath     string // Path to certificate file (optional if GenerateCert is true)
	KeyPath      string // Path to private key file (optional if GenerateCert is true)
	GenerateCert bool   // If true, generate an in-memory self-signed certificate
	Security     transport.SecurityOptions

	ProxyProtocol bool // Require a PROXY protocol header on every connection

	Advertise    bool   // Publish the server over mDNS
	InstanceName string // mDNS instance name (default: "wsproto on <hostname>")

	Subprotocols    []string
	CaptureDir      string // Directory to write message captures (empty = disabled)
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Conn tunes every accepted connection.
	Conn websocket.Config
}

// Server is the wsproto echo server
type Server struct {
	config     *Config
	listener   net.Listener
	tlsConfig  *tls.Config
	capture    *captureWriter
	advertiser *discovery.Advertiser

	wg      sync.WaitGroup
	mu      sync.Mutex
	conns   map[string]*websocket.Conn
	closing bool
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		config: config,
		conns:  make(map[string]*websocket.Conn),
	}

	if config.TLS {
		var cert tls.Certificate
		if config.GenerateCert {
			logging.Info("Generating self-signed server certificate")
			sc, err := GenerateSelfSigned(DefaultCertParams())
			if err != nil {
				return nil, fmt.Errorf("failed to generate certificate: %w", err)
			}
			logging.Info("Certificate generated successfully",
				zap.String("CN", sc.Certificate.Subject.CommonName),
				zap.Strings("dns_names", sc.Certificate.DNSNames),
				zap.Time("not_after", sc.Certificate.NotAfter),
			)
			cert = sc.TLS
		} else {
			var err error
			cert, err = LoadCertificate(config.CertPath, config.KeyPath)
			if err != nil {
				return nil, err
			}
		}
		tlsConfig, err := NewTLSConfig(cert, config.Security)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = tlsConfig
	}

	capture, err := newCaptureWriter(config.CaptureDir)
	if err != nil {
		return nil, err
	}
	s.capture = capture
	return s, nil
}

// Listen opens the listening socket. Start calls it; tests call it directly
// before Serve.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if s.config.ProxyProtocol {
		ln = &proxyproto.Listener{
			Listener: ln,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
			ReadHeaderTimeout: proxyHeaderTimeout,
		}
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	return nil
}

// Addr returns the listening address, nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	logging.Info("Starting wsproto echo server",
		zap.String("addr", s.listener.Addr().String()),
		zap.String("path", s.config.Path),
		zap.Bool("proxy_protocol", s.config.ProxyProtocol),
		zap.Strings("subprotocols", s.config.Subprotocols),
	)
	if s.tlsConfig != nil {
		logging.Info("TLS Configuration", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	if s.config.Advertise {
		if err := s.advertise(); err != nil {
			// discovery is optional
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (s *Server) advertise() error {
	name := s.config.InstanceName
	if name == "" {
		host, _ := os.Hostname()
		name = "wsproto on " + host
	}
	port := s.config.Port
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	adv, err := discovery.Advertise(discovery.Info{
		Instance:     name,
		Port:         port,
		Path:         s.config.Path,
		Secure:       s.tlsConfig != nil,
		Subprotocols: s.config.Subprotocols,
		Version:      version.Version,
	})
	if err != nil {
		return err
	}
	s.advertiser = adv
	return nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}
	logging.Info("Server listening for connections", zap.String("addr", s.listener.Addr().String()))

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection reads the upgrade request and hands the stream to a
// websocket.Conn, which owns it from then on.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "connection_accepted")

	if tlsConn, ok := conn.(*tls.Conn); ok {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
		err := tlsConn.HandshakeContext(ctx)
		cancel()
		if err != nil {
			logging.Warn("TLS handshake failed",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			_ = conn.Close()
			return
		}
	}

	req, rest, err := readUpgradeRequest(conn, s.config.RequestTimeout)
	if err != nil {
		logging.Warn("Failed to read HTTP request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		var he *handshake.HandshakeError
		if errors.As(err, &he) && !errors.Is(err, handshake.ErrTimeout) {
			writeReject(conn, remoteAddr, err)
		}
		_ = conn.Close()
		return
	}
	LogHTTPRequestDetails(req, remoteAddr)

	if s.config.Path != "" && req.URL.Path != s.config.Path {
		writeReject(conn, remoteAddr, &handshake.HandshakeError{Err: errNotFound, Status: 404})
		_ = conn.Close()
		return
	}

	cfg := s.config.Conn
	cfg.Subprotocols = s.config.Subprotocols
	t := transport.NewServer(conn, rest, cfg.Transport)
	c, err := websocket.NewServer(req, t, &echoHandler{srv: s}, cfg)
	if err != nil {
		logging.Error("Failed to create connection", zap.String("remote_addr", remoteAddr), zap.Error(err))
		_ = conn.Close()
		return
	}

	if !s.track(c) {
		_ = conn.Close()
		return
	}
	if err := c.Open(); err != nil {
		logging.Error("Failed to open connection", zap.String("conn_id", c.ID()), zap.Error(err))
	}
}

// track registers c; it returns false once shutdown has begun.
func (s *Server) track(c *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c.ID()] = c
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.conns[c.ID()]
	delete(s.conns, c.ID())
	s.mu.Unlock()
	if ok {
		s.wg.Done()
	}
}

// Shutdown stops accepting connections and closes every open connection with
// 1001 (going away), waiting for the closing handshakes until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	s.closing = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.advertiser.Shutdown()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	for _, c := range conns {
		logging.Info("Closing active connection", zap.String("conn_id", c.ID()))
		_ = c.CloseWithReason(protocol.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		err = ctx.Err()
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of tracked connections
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
