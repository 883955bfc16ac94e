package ui

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/websocket"
)

// CommandKind identifies what an input line asks for.
type CommandKind int

const (
	CmdText CommandKind = iota
	CmdBinary
	CmdPing
	CmdClose
	CmdQuit
	CmdHelp
)

// Command is one parsed input line.
type Command struct {
	Kind   CommandKind
	Text   string
	Data   []byte
	Code   protocol.CloseCode
	Reason string
}

// CommandHelp lists the slash commands understood by ParseInput.
var CommandHelp = []string{
	"<text>              send a text message",
	"//text              send a text message starting with '/'",
	"/binary <hex>       send a binary message",
	"/ping [payload]     send a ping and report the round trip",
	"/close [code] [why] start the closing handshake",
	"/quit               close with 1000 and exit",
	"/help               show this list",
}

var errEmptyInput = errors.New("empty input")

// ParseInput turns a line typed by the user into a Command. Lines that do not
// start with '/' are sent as text.
func ParseInput(line string) (Command, error) {
	if line == "" {
		return Command{}, errEmptyInput
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdText, Text: line}, nil
	}
	if strings.HasPrefix(line, "//") {
		return Command{Kind: CmdText, Text: line[1:]}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "binary", "bin":
		data, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
		if err != nil {
			return Command{}, fmt.Errorf("/binary: %w", err)
		}
		return Command{Kind: CmdBinary, Data: data}, nil
	case "ping":
		if len(arg) > protocol.MaxControlPayload {
			return Command{}, fmt.Errorf("/ping: payload longer than %d bytes", protocol.MaxControlPayload)
		}
		return Command{Kind: CmdPing, Data: []byte(arg)}, nil
	case "close":
		cmd := Command{Kind: CmdClose, Code: protocol.CloseNormal}
		if arg == "" {
			return cmd, nil
		}
		codeStr, reason, _ := strings.Cut(arg, " ")
		code, err := strconv.ParseUint(codeStr, 10, 16)
		if err != nil {
			return Command{}, fmt.Errorf("/close: bad code %q", codeStr)
		}
		cmd.Code = protocol.CloseCode(code)
		cmd.Reason = strings.TrimSpace(reason)
		return cmd, nil
	case "quit", "exit":
		return Command{Kind: CmdQuit, Code: protocol.CloseNormal}, nil
	case "help", "?":
		return Command{Kind: CmdHelp}, nil
	}
	return Command{}, fmt.Errorf("unknown command /%s (try /help)", name)
}

// Session is the part of a websocket.Conn the UIs drive.
type Session interface {
	Open() error
	SendText(s string) error
	SendBinary(b []byte) error
	Ping(data []byte, handler websocket.PingHandler) error
	CloseWithReason(code protocol.CloseCode, reason string) error
}

// PongFunc receives the payload of an answered ping and its round trip.
type PongFunc func(payload []byte, rtt time.Duration)

// Execute performs cmd on s. Help is a no-op; quit closes with cmd.Code.
func Execute(s Session, cmd Command, onPong PongFunc) error {
	switch cmd.Kind {
	case CmdText:
		return s.SendText(cmd.Text)
	case CmdBinary:
		return s.SendBinary(cmd.Data)
	case CmdPing:
		sent := time.Now()
		var handler websocket.PingHandler
		if onPong != nil {
			handler = func(payload []byte) { onPong(payload, time.Since(sent)) }
		}
		return s.Ping(cmd.Data, handler)
	case CmdClose, CmdQuit:
		return s.CloseWithReason(cmd.Code, cmd.Reason)
	}
	return nil
}

// FormatMessage renders one message line without styling.
func FormatMessage(marker string, msg websocket.Message) string {
	if msg.Kind == websocket.TextMessage {
		return fmt.Sprintf("%s %s", marker, msg.Text())
	}
	const maxDump = 64
	data := msg.Data
	suffix := ""
	if len(data) > maxDump {
		data = data[:maxDump]
		suffix = "..."
	}
	return fmt.Sprintf("%s [binary %d bytes] %s%s", marker, len(msg.Data), hex.EncodeToString(data), suffix)
}

// FormatCommand renders what was sent for cmd.
func FormatCommand(cmd Command) string {
	switch cmd.Kind {
	case CmdText:
		return FormatMessage(SentMarker, websocket.NewText(cmd.Text))
	case CmdBinary:
		return FormatMessage(SentMarker, websocket.NewBinary(cmd.Data))
	case CmdPing:
		return fmt.Sprintf("%s ping %q", ControlMarker, cmd.Data)
	case CmdClose, CmdQuit:
		if cmd.Reason != "" {
			return fmt.Sprintf("%s close %d %q", ControlMarker, uint16(cmd.Code), cmd.Reason)
		}
		return fmt.Sprintf("%s close %d", ControlMarker, uint16(cmd.Code))
	}
	return ""
}

// FormatPong renders an answered ping.
func FormatPong(payload []byte, rtt time.Duration) string {
	return fmt.Sprintf("%s pong %q in %s", ControlMarker, payload, rtt.Round(time.Microsecond))
}
