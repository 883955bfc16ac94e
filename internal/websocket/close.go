package websocket

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/handshake"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/protocol"
)

// terminal is the single final notification of a connection.
type terminal struct {
	err      error
	code     protocol.CloseCode
	reason   string
	wasClean bool
}

func closeEvent(code protocol.CloseCode, reason string, clean bool) terminal {
	return terminal{code: code, reason: reason, wasClean: clean}
}

// finishLocked moves to CLOSED and queues the terminal notification. Later
// calls are ignored. Queued data frames that have not started to go out are
// dropped; a queued close frame or handshake reply still drains.
func (c *Conn) finishLocked(t terminal) {
	if c.terminated {
		return
	}
	c.terminated = true
	c.setStateLocked(Closed)

	stopTimer(&c.handshakeTimer)
	stopTimer(&c.closeTimer)
	stopTimer(&c.pingTimer)
	stopTimer(&c.pongTimer)
	c.awaitingPong = false

	c.reasm.Reset()
	c.inbuf.Reset()
	c.out.Preempt()
	if n := c.pings.clear(); n > 0 {
		logging.Debug("Dropped unanswered ping handlers", zap.String("conn_id", c.id), zap.Int("count", n))
	}

	if t.err != nil {
		logging.LogConnection(c.id, "failed", zap.Error(t.err))
		err := t.err
		c.emit(func() { c.handler.OnFailure(c, err) })
		return
	}
	logging.LogConnection(c.id, "closed",
		zap.Uint16("code", uint16(t.code)),
		zap.String("reason", t.reason),
		zap.Bool("clean", t.wasClean),
	)
	c.emit(func() { c.handler.OnClose(c, t.code, t.reason, t.wasClean) })
}

// failLocked ends the connection with OnFailure. abort tears the transport
// down without flushing.
func (c *Conn) failLocked(err error, abort bool) {
	c.finishLocked(terminal{err: err})
	if abort {
		c.abortTransportLocked()
	}
}

func (c *Conn) handshakeTimedOut() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.state != Connecting || c.terminated {
		return
	}
	logging.Warn("Handshake timed out", zap.String("conn_id", c.id), zap.Duration("timeout", c.cfg.HandshakeTimeout))
	c.failLocked(&handshake.HandshakeError{Err: handshake.ErrTimeout}, true)
}

func (c *Conn) startCloseTimerLocked() {
	if c.closeTimer != nil || c.cfg.CloseTimeout <= 0 {
		return
	}
	c.closeTimer = time.AfterFunc(c.cfg.CloseTimeout, c.closeTimedOut)
}

// closeTimedOut ends a closing handshake the peer did not finish. When both
// close frames were exchanged and only the server's TCP close is missing,
// the close is still clean.
func (c *Conn) closeTimedOut() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.terminated {
		return
	}
	if c.closeSent && c.closeRecv {
		c.finishLocked(closeEvent(c.peerCode, c.peerReason, true))
		c.shutdownTransportLocked()
		return
	}
	logging.Warn("Closing handshake timed out", zap.String("conn_id", c.id))
	c.finishLocked(closeEvent(protocol.CloseAbnormal, "", false))
	c.abortTransportLocked()
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
