package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsproto/internal/protocol"
	"github.com/muurk/wsproto/internal/websocket"
)

// Messages delivered from the connection's executor into the program.
type (
	OpenedMsg   struct{ Subprotocol string }
	ReceivedMsg struct{ Message websocket.Message }
	PongMsg     struct {
		Payload []byte
		RTT     time.Duration
	}
	ClosedMsg struct {
		Code     protocol.CloseCode
		Reason   string
		WasClean bool
	}
	FailedMsg struct{ Err error }
)

// Bridge returns a websocket.Handler forwarding every event to send,
// typically tea.Program.Send.
func Bridge(send func(tea.Msg)) websocket.Handler {
	return websocket.HandlerFuncs{
		Open: func(c *websocket.Conn) {
			send(OpenedMsg{Subprotocol: c.Subprotocol()})
		},
		Message: func(_ *websocket.Conn, msg websocket.Message) {
			send(ReceivedMsg{Message: msg})
		},
		Failure: func(_ *websocket.Conn, err error) {
			send(FailedMsg{Err: err})
		},
		Close: func(_ *websocket.Conn, code protocol.CloseCode, reason string, wasClean bool) {
			send(ClosedMsg{Code: code, Reason: reason, WasClean: wasClean})
		},
	}
}

type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateEnded
)

// sessionKeyMap defines key bindings for the session screen
type sessionKeyMap struct {
	Send     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k sessionKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.PageUp, k.PageDown, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k sessionKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.PageUp, k.PageDown}, {k.Quit}}
}

// SessionModel is the interactive "wsproto connect --tui" screen: a
// scrollback of traffic above an input line.
type SessionModel struct {
	session Session
	target  string
	notify  func(tea.Msg)

	state       sessionState
	subprotocol string
	quitting    bool
	lines       []string
	result      *Result

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keys     sessionKeyMap

	width  int
	height int
}

// NewSessionModel creates the session screen for s. notify receives pong
// notifications from the executor and is usually tea.Program.Send.
func NewSessionModel(s Session, target string, notify func(tea.Msg)) SessionModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "message, or /help"
	in.Prompt = SentMarker + " "
	in.Focus()

	width, height := GetTerminalSize()
	vp := viewport.New(width, height-6)

	return SessionModel{
		session:  s,
		target:   target,
		notify:   notify,
		viewport: vp,
		input:    in,
		spinner:  sp,
		help:     help.New(),
		keys: sessionKeyMap{
			Send: key.NewBinding(
				key.WithKeys("enter"),
				key.WithHelp("enter", "send"),
			),
			PageUp: key.NewBinding(
				key.WithKeys("pgup"),
				key.WithHelp("pgup", "scroll up"),
			),
			PageDown: key.NewBinding(
				key.WithKeys("pgdown"),
				key.WithHelp("pgdn", "scroll down"),
			),
			Quit: key.NewBinding(
				key.WithKeys("ctrl+c", "esc"),
				key.WithHelp("esc", "close & quit"),
			),
		},
		width:  width,
		height: height,
	}
}

// Init opens the connection and starts the spinner.
func (m SessionModel) Init() tea.Cmd {
	open := func() tea.Msg {
		if err := m.session.Open(); err != nil {
			return FailedMsg{Err: err}
		}
		return nil
	}
	return tea.Batch(open, m.spinner.Tick, textinput.Blink)
}

// Update handles messages and updates the model
func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit(protocol.CloseNormal, "")
		case key.Matches(msg, m.keys.Send):
			return m.submit()
		case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case OpenedMsg:
		m.state = stateOpen
		m.subprotocol = msg.Subprotocol
		line := ControlMarker + " open"
		if msg.Subprotocol != "" {
			line += " (subprotocol " + msg.Subprotocol + ")"
		}
		m.appendLine(ControlStyle.Render(line))
		return m, nil

	case ReceivedMsg:
		m.appendLine(ReceivedStyle.Render(FormatMessage(ReceivedMarker, msg.Message)))
		return m, nil

	case PongMsg:
		m.appendLine(ControlStyle.Render(FormatPong(msg.Payload, msg.RTT)))
		return m, nil

	case ClosedMsg:
		if m.state == stateEnded {
			return m, nil
		}
		m.end(NewCloseResult(msg.Code, msg.Reason, msg.WasClean))
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case FailedMsg:
		if m.state == stateEnded {
			return m, nil
		}
		m.end(NewFailureResult("Connection failed", msg.Err, Troubleshoot(msg.Err)))
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.state != stateConnecting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state != stateEnded {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m SessionModel) submit() (tea.Model, tea.Cmd) {
	if m.state == stateEnded {
		return m, tea.Quit
	}
	line := m.input.Value()
	m.input.SetValue("")
	if line == "" {
		return m, nil
	}

	cmd, err := ParseInput(line)
	if err != nil {
		m.appendLine(ErrorMessageStyle.Render(FailureMarker + " " + err.Error()))
		return m, nil
	}
	switch cmd.Kind {
	case CmdHelp:
		for _, h := range CommandHelp {
			m.appendLine(SubtitleStyle.Render("  " + h))
		}
		return m, nil
	case CmdQuit:
		return m.quit(cmd.Code, cmd.Reason)
	}

	var onPong PongFunc
	if m.notify != nil {
		notify := m.notify
		onPong = func(payload []byte, rtt time.Duration) {
			notify(PongMsg{Payload: payload, RTT: rtt})
		}
	}
	if err := Execute(m.session, cmd, onPong); err != nil {
		m.appendLine(ErrorMessageStyle.Render(FailureMarker + " " + err.Error()))
		return m, nil
	}
	style := ControlStyle
	if cmd.Kind == CmdText || cmd.Kind == CmdBinary {
		style = SentStyle
	}
	m.appendLine(style.Render(FormatCommand(cmd)))
	return m, nil
}

// quit closes the connection and exits once it has ended.
func (m SessionModel) quit(code protocol.CloseCode, reason string) (tea.Model, tea.Cmd) {
	if m.state == stateEnded {
		return m, tea.Quit
	}
	m.quitting = true
	if err := m.session.CloseWithReason(code, reason); err != nil {
		return m, tea.Quit
	}
	m.appendLine(ControlStyle.Render(FormatCommand(Command{Kind: CmdClose, Code: code, Reason: reason})))
	return m, nil
}

func (m *SessionModel) end(r *Result) {
	m.state = stateEnded
	m.result = r
	m.input.Blur()
	m.appendLine(r.SetWidth(max(m.width, MinTerminalWidth)).Render())
}

func (m *SessionModel) appendLine(s string) {
	m.lines = append(m.lines, s)
	m.refresh()
}

func (m *SessionModel) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// Result returns the final result once the connection has ended.
func (m SessionModel) Result() *Result {
	return m.result
}

// View renders the session screen
func (m SessionModel) View() string {
	var status string
	switch m.state {
	case stateConnecting:
		status = fmt.Sprintf("%s connecting to %s", m.spinner.View(), m.target)
	case stateOpen:
		status = "OPEN  " + m.target
		if m.subprotocol != "" {
			status += "  [" + m.subprotocol + "]"
		}
	default:
		status = "CLOSED  " + m.target + "  (enter or esc to exit)"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		StatusBarStyle.Width(max(m.width, MinTerminalWidth)).Render(status),
		m.viewport.View(),
		RenderHorizontalDivider(max(m.width, MinTerminalWidth), "─"),
		m.input.View(),
		m.help.View(m.keys),
	)
}

// RunSession runs the interactive screen until the user quits. handler must
// be installed on the connection behind s before calling; use NewSessionHandler.
func RunSession(s Session, target string, ref *ProgramRef) (*Result, error) {
	model := NewSessionModel(s, target, ref.Send)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.set(p)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(SessionModel).Result(), nil
}

// ProgramRef lets a connection handler be created before the program that
// receives its events.
type ProgramRef struct {
	p *tea.Program
}

// NewSessionHandler returns a handler for the connection and the reference
// RunSession completes.
func NewSessionHandler() (websocket.Handler, *ProgramRef) {
	ref := &ProgramRef{}
	return Bridge(ref.Send), ref
}

func (r *ProgramRef) set(p *tea.Program) { r.p = p }

// Send forwards msg to the program; it drops messages before RunSession.
func (r *ProgramRef) Send(msg tea.Msg) {
	if r.p != nil {
		r.p.Send(msg)
	}
}
