// Package transport carries WebSocket bytes over an ordered byte stream.
//
// The connection engine sees a transport only through the Transport and
// Handler interfaces: it writes bytes without blocking, receives reads and a
// writable signal through callbacks, and gets exactly one HandleClose.
// NetTransport implements the contract over a net.Conn, dialing (optionally
// through a SOCKS5 proxy from the environment) and wrapping the connection in
// TLS on the client side.
//
// Transport security is configured with SecurityOptions, applied once before
// Open. In strict trust mode the peer chain is handed to a caller supplied
// TrustFunc instead of the system verifier.
package transport
