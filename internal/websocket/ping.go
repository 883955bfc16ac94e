package websocket

import (
	"encoding/binary"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/outbound"
	"github.com/muurk/wsproto/internal/protocol"
)

const keepalivePrefix = "wsproto-keepalive:"

type pingEntry struct {
	handler   PingHandler
	keepalive bool
}

// pingTable holds outstanding pings keyed by payload. Pings sharing a
// payload, including the empty one, are answered first in first out.
type pingTable struct {
	pending map[string][]pingEntry
}

func newPingTable() pingTable {
	return pingTable{pending: make(map[string][]pingEntry)}
}

func (p *pingTable) add(payload []byte, e pingEntry) {
	k := string(payload)
	p.pending[k] = append(p.pending[k], e)
}

// resolve removes and returns the oldest ping waiting for payload.
func (p *pingTable) resolve(payload []byte) (pingEntry, bool) {
	k := string(payload)
	q := p.pending[k]
	if len(q) == 0 {
		return pingEntry{}, false
	}
	e := q[0]
	if len(q) == 1 {
		delete(p.pending, k)
	} else {
		p.pending[k] = q[1:]
	}
	return e, true
}

func (p *pingTable) len() int {
	n := 0
	for _, q := range p.pending {
		n += len(q)
	}
	return n
}

// clear drops every entry and returns how many there were.
func (p *pingTable) clear() int {
	n := p.len()
	p.pending = make(map[string][]pingEntry)
	return n
}

func (c *Conn) resolvePongLocked(payload []byte) {
	e, ok := c.pings.resolve(payload)
	if !ok {
		// unsolicited pongs are allowed as heartbeats
		logging.Debug("Unmatched pong", zap.String("conn_id", c.id), zap.Int("length", len(payload)))
		return
	}
	if e.keepalive {
		c.awaitingPong = false
		stopTimer(&c.pongTimer)
		c.scheduleKeepaliveLocked()
		return
	}
	p := append([]byte(nil), payload...)
	h := e.handler
	c.emit(func() { h(p) })
}

func (c *Conn) scheduleKeepaliveLocked() {
	if c.cfg.PingInterval <= 0 || c.state != Open {
		return
	}
	stopTimer(&c.pingTimer)
	c.pingTimer = time.AfterFunc(c.cfg.PingInterval, c.keepaliveTick)
}

func (c *Conn) keepaliveTick() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.state != Open || c.awaitingPong {
		return
	}
	c.keepaliveSeq++
	payload := binary.BigEndian.AppendUint64([]byte(keepalivePrefix), c.keepaliveSeq)
	if err := c.enqueueFrame(protocol.NewFrame(protocol.OpPing, payload), outbound.KindControl); err != nil {
		return
	}
	c.pings.add(payload, pingEntry{keepalive: true})
	c.awaitingPong = true
	c.pongTimer = time.AfterFunc(c.cfg.PongTimeout, c.pongTimedOut)
	c.flushLocked()
}

func (c *Conn) pongTimedOut() {
	c.mu.Lock()
	defer c.unlockAndDeliver()
	if c.terminated || !c.awaitingPong {
		return
	}
	logging.Warn("Keepalive pong not received",
		zap.String("conn_id", c.id),
		zap.Duration("timeout", c.cfg.PongTimeout),
	)
	c.finishLocked(closeEvent(protocol.CloseAbnormal, "pong timeout", false))
	c.abortTransportLocked()
}
