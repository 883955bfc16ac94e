package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/websocket"
)

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintLines writes multiple lines
func (p *Printer) PrintLines(lines ...string) {
	for _, line := range lines {
		_, _ = fmt.Fprintln(p.out, line)
	}
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a session banner
func (p *Printer) PrintHeader(title, target string, params map[string]string) {
	p.Println(NewHeader(title, target, params).SetWidth(p.width).Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// LinePrinter is a websocket.Handler that prints every event as a line.
// It backs "wsproto connect" when stdout is not a terminal or --tui is off.
type LinePrinter struct {
	p *Printer

	mu     sync.Mutex
	result *Result
	done   chan struct{}
	once   sync.Once
}

// NewLinePrinter returns a LinePrinter writing to w.
func NewLinePrinter(w io.Writer) *LinePrinter {
	return &LinePrinter{p: NewPrinter(w), done: make(chan struct{})}
}

func (l *LinePrinter) OnOpen(c *websocket.Conn) {
	line := fmt.Sprintf("%s open", ControlMarker)
	if sp := c.Subprotocol(); sp != "" {
		line += fmt.Sprintf(" (subprotocol %s)", sp)
	}
	l.println(ControlStyle.Render(line))
}

func (l *LinePrinter) OnMessage(_ *websocket.Conn, msg websocket.Message) {
	l.println(ReceivedStyle.Render(FormatMessage(ReceivedMarker, msg)))
}

func (l *LinePrinter) OnFailure(_ *websocket.Conn, err error) {
	l.finish(NewFailureResult("Connection failed", err, Troubleshoot(err)))
}

func (l *LinePrinter) OnClose(_ *websocket.Conn, code protocol.CloseCode, reason string, wasClean bool) {
	l.finish(NewCloseResult(code, reason, wasClean))
}

// Sent echoes a command the user issued.
func (l *LinePrinter) Sent(cmd Command) {
	if line := FormatCommand(cmd); line != "" {
		style := ControlStyle
		if cmd.Kind == CmdText || cmd.Kind == CmdBinary {
			style = SentStyle
		}
		l.println(style.Render(line))
	}
}

// Pong prints an answered ping. It has the PongFunc signature.
func (l *LinePrinter) Pong(payload []byte, rtt time.Duration) {
	l.println(ControlStyle.Render(FormatPong(payload, rtt)))
}

// Error prints a local error such as a malformed command.
func (l *LinePrinter) Error(err error) {
	l.println(ErrorMessageStyle.Render(fmt.Sprintf("%s %v", FailureMarker, err)))
}

// Help prints the command list.
func (l *LinePrinter) Help() {
	for _, line := range CommandHelp {
		l.println(SubtitleStyle.Render("  " + line))
	}
}

// Done is closed once the connection has ended.
func (l *LinePrinter) Done() <-chan struct{} {
	return l.done
}

// Result returns the final result, nil while the connection is alive.
func (l *LinePrinter) Result() *Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

func (l *LinePrinter) println(s string) {
	l.mu.Lock()
	l.p.Println(s)
	l.mu.Unlock()
}

func (l *LinePrinter) finish(r *Result) {
	l.once.Do(func() {
		l.mu.Lock()
		l.result = r
		l.p.PrintResult(r)
		l.mu.Unlock()
		close(l.done)
	})
}
