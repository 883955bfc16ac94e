// Package handshake implements the RFC 6455 opening handshake for both sides.
//
// Client side: GenerateKey and BuildRequest produce the HTTP/1.1 Upgrade
// request; ParseResponse reads the server's reply incrementally from whatever
// bytes have arrived; VerifyResponse checks the status line, the Upgrade and
// Connection headers, the Sec-WebSocket-Accept signature and the selected
// subprotocol.
//
// Server side: IsUpgradeRequest classifies a request before a connection is
// built for it; ValidateRequest checks it in full; BuildAcceptResponse and
// BuildRejectResponse produce the 101 reply or the error reply.
//
// Every failure is a *HandshakeError. On the server, its Status is the HTTP
// status to reject with.
package handshake
