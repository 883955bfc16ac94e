// Package logging provides structured logging for the wsproto engine and tools.
//
// This package wraps a global zap logger with convenience functions used across
// the protocol engine, the echo server and the client tool. Library use is silent
// by default: nothing is written until Initialize is called with a level or the
// WSPROTO_LOG_LEVEL environment variable is set.
//
// # Log Levels
//
//   - Debug: frame traffic, ping/pong correlation, raw handshake bytes
//   - Info: connection lifecycle and ready-state transitions
//   - Warn: handshake rejections, protocol violations, abrupt disconnects
//   - Error: listener failures and other conditions that stop a component
//
// # Structured Logging
//
//	logging.Info("Connection accepted",
//	    zap.String("conn_id", id),
//	    zap.String("remote_addr", addr),
//	)
//
// # Specialized Logging
//
//	logging.LogConnection(id, "handshake_complete")
//	logging.LogStateChange(id, "CONNECTING", "OPEN")
//	logging.LogFrame(id, "recv", "text", true, 5)
//	logging.LogRawBytes("HTTP 101 Response", resp)
//
// # Output
//
// Console output goes to stdout. Setting Options.File routes entries to a log
// file rotated by size (lumberjack).
//
// # Thread Safety
//
// All logging functions are safe for concurrent use; SetLogger may be called at
// any time and takes effect for subsequent entries.
package logging
