// Package websocket is the RFC 6455 connection engine.
//
// A Conn drives one connection, client or server side, over any
// transport.Transport: it performs the opening handshake, decodes and encodes
// frames, reassembles fragmented messages, answers pings, matches pongs to
// the pings that asked for them, and negotiates the close.
//
// # Lifecycle
//
//	CONNECTING ──Open, handshake ok──▶ OPEN ──Close / peer close──▶ CLOSING ──▶ CLOSED
//	     │                              │
//	     └──handshake failure──────────▶ CLOSED ◀──protocol violation / drop
//
// Every connection ends with exactly one of Handler.OnFailure (never opened,
// or transport error while open) or Handler.OnClose.
//
// # Client
//
//	u, _ := url.Parse("wss://echo.example.com/chat")
//	c, err := websocket.NewClient(u, websocket.HandlerFuncs{
//	    Open:    func(c *websocket.Conn) { c.SendText("hello") },
//	    Message: func(c *websocket.Conn, m websocket.Message) { fmt.Println(m.Text()) },
//	}, websocket.Config{})
//	if err != nil {
//	    return err
//	}
//	return c.Open()
//
// # Server
//
// A server accepts the stream and reads the request itself, then hands both
// to NewServer:
//
//	req, rest, _ := readRequest(conn)
//	if !handshake.IsUpgradeRequest(req.Header) {
//	    // not for us
//	}
//	t := transport.NewServer(conn, rest, transport.Options{})
//	c, _ := websocket.NewServer(req, t, handler, websocket.Config{})
//	c.Open()
//
// # Concurrency
//
// Conn methods are safe for concurrent use. Handler calls for one connection
// never overlap and arrive in event order on Config.Executor (a dedicated
// goroutine by default). Handlers may call back into the Conn.
package websocket
