package server

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/websocket"
)

// echoHandler sends every message back to its sender.
type echoHandler struct {
	srv      *Server
	received atomic.Int64
}

func (h *echoHandler) OnOpen(c *websocket.Conn) {
	logging.LogConnection(c.ID(), "websocket_upgraded",
		zap.String("subprotocol", c.Subprotocol()),
	)
}

func (h *echoHandler) OnMessage(c *websocket.Conn, msg websocket.Message) {
	n := int(h.received.Add(1))
	h.srv.capture.save(c, n, directionReceived, msg)

	if err := c.Send(msg); err != nil {
		logging.Debug("Echo not sent",
			zap.String("conn_id", c.ID()),
			zap.Error(err),
		)
		return
	}
	h.srv.capture.save(c, n, directionSent, msg)
}

func (h *echoHandler) OnFailure(c *websocket.Conn, err error) {
	logging.Warn("Connection failed",
		zap.String("conn_id", c.ID()),
		zap.Error(err),
	)
	h.srv.untrack(c)
}

func (h *echoHandler) OnClose(c *websocket.Conn, code protocol.CloseCode, reason string, wasClean bool) {
	logging.LogConnection(c.ID(), "websocket_closed",
		zap.Stringer("code", code),
		zap.String("reason", reason),
		zap.Bool("clean", wasClean),
		zap.Int64("messages", h.received.Load()),
	)
	h.srv.untrack(c)
}
