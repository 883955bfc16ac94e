// Package ui provides the terminal front ends of the wsproto client.
//
// Two presentations share one command language (see ParseInput):
//
//   - LinePrinter is a websocket.Handler that prints each event as a styled
//     line. It is used when stdout is not a terminal, and lets wsproto be
//     scripted through pipes.
//   - SessionModel is a Bubble Tea program with a scrollback viewport and an
//     input line. Connection events reach it through Bridge, which turns
//     handler calls into tea messages.
//
// PickerModel lists servers found over mDNS and returns the URL the user
// chose.
//
// # Logging Integration
//
// Logging is controlled by WSPROTO_LOG_LEVEL. When it is unset the zap
// logger is silent, so the UI output stays clean. Use --log-file to keep
// logs while running the interactive screen.
package ui
