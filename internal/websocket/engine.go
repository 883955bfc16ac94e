package websocket

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/handshake"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/outbound"
	"github.com/muurk/wsproto/internal/protocol"
)

// HandleOpen is called by the transport once the stream is connected. The
// client writes its upgrade request; the server validates the request it
// was built with and answers it.
func (c *Conn) HandleOpen() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.state != Connecting || c.terminated {
		return
	}
	if c.role == protocol.RoleClient {
		c.sendRequestLocked()
	} else {
		c.answerRequestLocked()
	}
}

func (c *Conn) sendRequestLocked() {
	key, err := handshake.GenerateKey(c.cfg.Rand)
	if err != nil {
		c.failLocked(err, true)
		return
	}
	c.request = &handshake.Request{
		URL:          c.url,
		Key:          key,
		Subprotocols: c.cfg.Subprotocols,
		Header:       c.cfg.Header,
	}
	raw, err := handshake.BuildRequest(c.request)
	if err != nil {
		c.failLocked(&handshake.HandshakeError{Err: err}, true)
		return
	}
	logging.LogRawBytes("Handshake request", raw)
	c.out.Enqueue(raw, outbound.KindControl)
	c.flushLocked()
}

func (c *Conn) answerRequestLocked() {
	req := c.serverReq
	key, err := handshake.ValidateRequest(req)
	if err != nil {
		logging.Warn("Rejecting upgrade request",
			zap.String("conn_id", c.id),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		resp := handshake.BuildRejectResponse(err)
		c.out.Enqueue(resp, outbound.KindClose)
		c.failLocked(err, false)
		c.shutdownTransportLocked()
		return
	}

	offered := handshake.HeaderTokens(req.Header, handshake.HeaderProtocol)
	c.subprotocol = handshake.NegotiateSubprotocol(offered, c.cfg.Subprotocols)
	resp := handshake.BuildAcceptResponse(key, c.subprotocol, c.cfg.Header)
	logging.LogRawBytes("Handshake response", resp)
	c.out.Enqueue(resp, outbound.KindControl)
	c.openedLocked()
	c.flushLocked()
}

// openedLocked moves CONNECTING to OPEN and starts keepalive.
func (c *Conn) openedLocked() {
	stopTimer(&c.handshakeTimer)
	c.setStateLocked(Open)
	c.emit(func() { c.handler.OnOpen(c) })
	c.scheduleKeepaliveLocked()
}

// HandleRead is called by the transport with newly arrived bytes.
func (c *Conn) HandleRead(p []byte) {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	c.counters.AddReceived(len(p))
	if c.terminated {
		return
	}
	c.inbuf.Write(p)
	c.processLocked()
}

// HandleWritable is called by the transport when a short write can resume.
func (c *Conn) HandleWritable() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	c.flushLocked()
}

// HandleClose is called by the transport exactly once when the stream ends.
func (c *Conn) HandleClose(err error) {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	c.transportDone = true
	c.closeAfterFlush = false
	if c.terminated {
		return
	}

	switch c.state {
	case Connecting:
		if err == nil {
			err = ErrClosedBeforeOpen
		}
		var he *handshake.HandshakeError
		if !errors.As(err, &he) {
			err = &handshake.HandshakeError{Err: err}
		}
		c.failLocked(err, false)
	case Open:
		if err != nil {
			c.failLocked(err, false)
			return
		}
		logging.LogConnection(c.id, "peer_dropped")
		c.finishLocked(closeEvent(protocol.CloseAbnormal, "", false))
	case Closing:
		if c.closeSent && c.closeRecv {
			c.finishLocked(closeEvent(c.peerCode, c.peerReason, true))
			return
		}
		c.finishLocked(closeEvent(protocol.CloseAbnormal, "", false))
	}
}

// processLocked consumes as much buffered input as possible.
func (c *Conn) processLocked() {
	for !c.terminated && c.inbuf.Len() > 0 {
		if c.state == Connecting {
			if c.role == protocol.RoleServer || !c.readResponseLocked() {
				return
			}
			continue
		}

		if c.closeRecv {
			// nothing may follow the peer's close frame
			c.inbuf.Reset()
			return
		}
		f, n, err := c.decoder.Decode(c.inbuf.Bytes())
		if err != nil {
			c.protocolFailureLocked(err)
			return
		}
		if f == nil {
			return
		}
		c.inbuf.Consume(n)
		c.handleFrameLocked(f)
	}
}

// readResponseLocked parses and verifies the server's handshake response.
// It returns true once the connection is OPEN.
func (c *Conn) readResponseLocked() bool {
	resp, n, err := handshake.ParseResponse(c.inbuf.Bytes(), c.request.HTTPRequest())
	if err != nil {
		c.failLocked(err, true)
		return false
	}
	if resp == nil {
		return false
	}
	logging.LogRawBytes("Handshake response", c.inbuf.Bytes()[:n])
	c.inbuf.Consume(n)

	sub, err := handshake.VerifyResponse(resp, c.request.Key, c.request.Subprotocols)
	if err != nil {
		logging.Warn("Handshake response rejected", zap.String("conn_id", c.id), zap.Error(err))
		c.failLocked(err, true)
		return false
	}
	c.subprotocol = sub
	c.openedLocked()
	return true
}

func (c *Conn) handleFrameLocked(f *protocol.Frame) {
	if logging.DebugEnabled() {
		logging.LogFrame(c.id, "recv", f.Opcode.String(), f.Fin, len(f.Payload))
	}

	switch f.Opcode {
	case protocol.OpPing:
		if !c.closeSent {
			c.enqueueFrame(protocol.NewFrame(protocol.OpPong, f.Payload), outbound.KindControl)
			c.flushLocked()
		}
	case protocol.OpPong:
		c.resolvePongLocked(f.Payload)
	case protocol.OpClose:
		c.handleCloseFrameLocked(f.Payload)
	default:
		msg, err := c.reasm.Push(f)
		if err != nil {
			c.protocolFailureLocked(err)
			return
		}
		if msg == nil {
			return
		}
		m := Message{Kind: TextMessage, Data: msg.Payload}
		if msg.Opcode == protocol.OpBinary {
			m.Kind = BinaryMessage
		}
		c.emit(func() { c.handler.OnMessage(c, m) })
	}
}

func (c *Conn) handleCloseFrameLocked(payload []byte) {
	code, reason, err := protocol.DecodeClosePayload(payload)
	if err != nil {
		c.protocolFailureLocked(err)
		return
	}
	c.closeRecv = true
	c.peerCode = code
	c.peerReason = reason
	logging.LogConnection(c.id, "close_received",
		zap.Uint16("code", uint16(code)),
		zap.String("reason", reason),
	)

	if !c.closeSent {
		// echo the peer's code to complete the closing handshake
		c.sendCloseLocked(code, "")
		c.setStateLocked(Closing)
	}
	stopTimer(&c.pingTimer)
	stopTimer(&c.pongTimer)

	if c.role == protocol.RoleServer {
		// the server closes the TCP stream first
		c.shutdownTransportLocked()
		return
	}
	c.flushLocked()
	c.startCloseTimerLocked()
}

// sendCloseLocked queues our close frame. Nothing may be queued after it.
func (c *Conn) sendCloseLocked(code protocol.CloseCode, reason string) {
	if c.closeSent {
		return
	}
	c.closeSent = true
	payload := protocol.EncodeClosePayload(code, reason)
	if err := c.enqueueFrame(protocol.NewFrame(protocol.OpClose, payload), outbound.KindClose); err != nil {
		logging.Debug("Close frame not queued", zap.String("conn_id", c.id), zap.Error(err))
	}
}

// protocolFailureLocked fails the connection for a peer violation: data not
// yet sent is dropped, a close frame with the mapped code goes out, and
// the connection is CLOSED at once.
func (c *Conn) protocolFailureLocked(err error) {
	code := protocol.CloseCodeFor(err)
	reason := protocol.TruncateReason(violationReason(err))
	logging.Warn("Protocol violation",
		zap.String("conn_id", c.id),
		zap.Uint16("close_code", uint16(code)),
		zap.Error(err),
	)
	if !c.closeSent {
		c.out.Preempt()
		c.sendCloseLocked(code, reason)
	}
	c.finishLocked(closeEvent(code, reason, false))
	c.shutdownTransportLocked()
}

func violationReason(err error) string {
	var pe *protocol.ProtocolError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return fmt.Sprint(err)
}
