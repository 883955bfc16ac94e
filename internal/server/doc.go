// Package server implements the wsproto echo server.
//
// The server accepts TCP connections (optionally behind TLS and a PROXY
// protocol header), reads the HTTP upgrade request, and hands the stream to
// a websocket.Conn whose handler sends every message straight back. It is
// the reference peer for the client tool and for interoperability checks.
//
// # Accept Path
//
//  1. Accept on the listener (proxyproto.Listener strips the PROXY header)
//  2. Finish the TLS handshake when TLS is enabled
//  3. Read the request head; bytes sent after it are handed to the connection
//  4. Reject unknown paths with 404 and invalid upgrades with 400/426
//  5. Answer with 101 and run the connection until either side closes
//
// # TLS Configuration
//
// Certificates come from files (CertPath/KeyPath) or are generated in memory
// (GenerateCert). Versions and cipher suites follow Config.Security, with TLS
// 1.2 as the minimum unless configured otherwise.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{
//	    Port:         8443,
//	    TLS:          true,
//	    GenerateCert: true,
//	    Advertise:    true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until SIGINT/SIGTERM or a listener error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Message Capture
//
// With CaptureDir set, every received and echoed message is appended to a
// JSON Lines file (hex and ASCII renderings of the payload) for later
// analysis.
//
// # Graceful Shutdown
//
// Shutdown stops the listener, withdraws the mDNS advertisement and sends
// close code 1001 to every open connection, then waits for the closing
// handshakes until the context ends.
package server
