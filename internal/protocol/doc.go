// Package protocol implements the RFC 6455 framing layer.
//
// It covers the frame model, an incremental decoder that works on whatever
// bytes have arrived so far, an encoder that produces the exact wire format
// (masking client frames with a fresh key per frame), close codes and close
// frame payloads, and the mapping from every protocol violation to the close
// code sent to the peer.
//
// # Frame Format
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
//	|N|V|V|V|       |S|             |   (if payload len==126/127)   |
//	| |1|2|3|       |K|             |                               |
//	+-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
//	|                               |Masking-key, if MASK set to 1  |
//	+-------------------------------+-------------------------------+
//	|                          Payload Data                         |
//	+---------------------------------------------------------------+
//
// # Decoding
//
// Decode never blocks and never consumes input on a short read:
//
//	d := protocol.Decoder{Role: protocol.RoleServer, MaxPayload: 1 << 20}
//	f, n, err := d.Decode(acc.Bytes())
//	switch {
//	case err != nil:
//	    // *ProtocolError; err.Code is the close code to send
//	case f == nil:
//	    // need n more bytes
//	default:
//	    acc.Consume(n)
//	}
//
// # Encoding
//
//	e := protocol.Encoder{Role: protocol.RoleClient}
//	wire, err := e.Encode(protocol.Frame{Fin: true, Opcode: protocol.OpText, Payload: []byte("hi")})
package protocol
