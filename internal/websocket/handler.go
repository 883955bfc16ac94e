package websocket

import "github.com/muurk/wsproto/internal/protocol"

// Handler receives connection events. All calls for one connection happen
// in the order the events occurred, one at a time, on the connection's
// executor.
//
// Exactly one of OnFailure or OnClose ends a connection. OnFailure is used
// when the connection never opened or the transport failed while open;
// every other ending is OnClose.
type Handler interface {
	OnOpen(c *Conn)
	OnMessage(c *Conn, msg Message)
	OnFailure(c *Conn, err error)
	OnClose(c *Conn, code protocol.CloseCode, reason string, wasClean bool)
}

// HandlerFuncs adapts optional functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open    func(c *Conn)
	Message func(c *Conn, msg Message)
	Failure func(c *Conn, err error)
	Close   func(c *Conn, code protocol.CloseCode, reason string, wasClean bool)
}

func (h HandlerFuncs) OnOpen(c *Conn) {
	if h.Open != nil {
		h.Open(c)
	}
}

func (h HandlerFuncs) OnMessage(c *Conn, msg Message) {
	if h.Message != nil {
		h.Message(c, msg)
	}
}

func (h HandlerFuncs) OnFailure(c *Conn, err error) {
	if h.Failure != nil {
		h.Failure(c, err)
	}
}

func (h HandlerFuncs) OnClose(c *Conn, code protocol.CloseCode, reason string, wasClean bool) {
	if h.Close != nil {
		h.Close(c, code, reason, wasClean)
	}
}

// PingHandler is invoked with the payload of the pong that answered a ping.
type PingHandler func(payload []byte)
