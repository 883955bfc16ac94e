package ui

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wsproto/internal/discovery"
)

// ScanFunc finds servers on the local network.
type ScanFunc func(ctx context.Context) ([]*discovery.Service, error)

type scanStartMsg struct{}

type scanCompleteMsg struct {
	services []*discovery.Service
	err      error
}

// pickerKeyMap defines key bindings for the service list
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k pickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k pickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualKeyMap defines key bindings for manual URL entry
type manualKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k manualKeyMap) ShortHelp() []key.Binding { return []key.Binding{k.Confirm, k.Cancel} }

func (k manualKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Confirm, k.Cancel}} }

// serviceItem wraps a Service for use with bubbles/list
type serviceItem struct {
	service *discovery.Service
}

func (s serviceItem) FilterValue() string {
	return s.service.Instance + " " + s.service.Hostname + " " + s.service.IP
}

func (s serviceItem) Title() string {
	return s.service.Instance
}

func (s serviceItem) Description() string {
	return s.service.URL()
}

// serviceDelegate renders each service as a card.
type serviceDelegate struct {
	width int
}

func (d serviceDelegate) Height() int { return 6 }

func (d serviceDelegate) Spacing() int { return 1 }

func (d serviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d serviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(serviceItem)
	if !ok {
		return
	}
	svc := it.service
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(lipgloss.NewStyle().Foreground(HighlightColor).Bold(true).Render("→ " + svc.Instance))
	} else {
		content.WriteString("  " + svc.Instance)
	}
	content.WriteString("\n")
	fmt.Fprintf(&content, "  URL:          %s\n", svc.URL())
	subprotocols := "none"
	if len(svc.Subprotocols) > 0 {
		subprotocols = strings.Join(svc.Subprotocols, ", ")
	}
	fmt.Fprintf(&content, "  Subprotocols: %s", subprotocols)
	if v := svc.GetMetadata("version"); v != "" {
		fmt.Fprintf(&content, "\n  Version:      %s", v)
	}

	cardWidth := d.width - 6
	if cardWidth < MinTerminalWidth-6 {
		cardWidth = MinTerminalWidth - 6
	}
	if cardWidth > MaxContentWidth-6 {
		cardWidth = MaxContentWidth - 6
	}
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth)
	if selected {
		card = card.BorderForeground(HighlightColor)
	}
	fmt.Fprint(w, card.Render(content.String()))
}

// PickerModel is the "wsproto discover --tui" screen. It scans for servers
// and lets the user choose one, or type a URL.
type PickerModel struct {
	scan    ScanFunc
	timeout time.Duration

	Scanning  bool
	Services  list.Model
	Err       error
	Chosen    string // URL picked by the user; empty when the user quit
	startedAt time.Time

	manual bool
	input  textinput.Model

	spinner    spinner.Model
	bar        progress.Model
	help       help.Model
	keys       pickerKeyMap
	manualKeys manualKeyMap

	width  int
	height int
}

// NewPickerModel creates a picker that calls scan with the given timeout.
func NewPickerModel(scan ScanFunc, timeout time.Duration) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	in := textinput.New()
	in.Placeholder = "ws://192.168.1.20:8080/"
	in.CharLimit = 256
	in.Width = 50

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	services := list.New([]list.Item{}, serviceDelegate{width: MinTerminalWidth}, 0, 0)
	services.Title = "Discovered Servers"
	services.SetShowStatusBar(false)
	services.SetFilteringEnabled(true)
	services.Styles.Title = TitleStyle

	return PickerModel{
		scan:     scan,
		timeout:  timeout,
		Services: services,
		input:    in,
		spinner:  s,
		bar:      bar,
		help:     help.New(),
		keys: pickerKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
			Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "enter URL")),
			Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		manualKeys: manualKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
}

// Init starts the first scan.
func (m PickerModel) Init() tea.Cmd {
	return m.startScan()
}

func (m PickerModel) startScan() tea.Cmd {
	scan, timeout := m.scan, m.timeout
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			services, err := scan(ctx)
			return scanCompleteMsg{services: services, err: err}
		},
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.manual {
			return m.updateManual(msg)
		}
		return m.updateList(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.Services.SetDelegate(serviceDelegate{width: msg.Width})
		m.Services.SetWidth(msg.Width - 4)
		m.Services.SetHeight(msg.Height - 6)
		return m, nil

	case scanStartMsg:
		m.Scanning = true
		m.startedAt = time.Now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, len(msg.services))
		for i, svc := range msg.services {
			items[i] = serviceItem{service: svc}
		}
		cmd = m.Services.SetItems(items)
		return m, cmd

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if !m.Scanning {
		m.Services, cmd = m.Services.Update(msg)
	}
	return m, cmd
}

func (m PickerModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Services.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.Services, cmd = m.Services.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Enter):
		if it, ok := m.Services.SelectedItem().(serviceItem); ok && !m.Scanning {
			m.Chosen = it.service.URL()
			return m, tea.Quit
		}
		return m, nil
	case key.Matches(msg, m.keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		cmd := m.Services.SetItems(nil)
		return m, tea.Batch(cmd, m.startScan())
	case key.Matches(msg, m.keys.Manual):
		m.manual = true
		m.input.SetValue("")
		return m, m.input.Focus()
	}

	if m.Scanning {
		return m, nil
	}
	var cmd tea.Cmd
	m.Services, cmd = m.Services.Update(msg)
	return m, cmd
}

func (m PickerModel) updateManual(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.manualKeys.Cancel):
		m.manual = false
		m.input.Blur()
		m.Err = nil
		return m, nil
	case key.Matches(msg, m.manualKeys.Confirm):
		value := strings.TrimSpace(m.input.Value())
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			m.Err = fmt.Errorf("not a ws:// or wss:// URL: %q", value)
			return m, nil
		}
		m.Chosen = value
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the picker
func (m PickerModel) View() string {
	width := m.width
	if width == 0 {
		width = 72
	}

	var content, helpText string
	switch {
	case m.manual:
		var b strings.Builder
		b.WriteString(SubtitleStyle.Render("  Enter a WebSocket URL"))
		b.WriteString("\n\n  URL: ")
		b.WriteString(m.input.View())
		if m.Err != nil {
			b.WriteString("\n\n  " + ErrorMessageStyle.Render(m.Err.Error()))
		}
		content = b.String()
		helpText = m.help.View(m.manualKeys)

	case m.Scanning:
		elapsed := time.Since(m.startedAt)
		fraction := 0.0
		if m.timeout > 0 {
			fraction = min(1, float64(elapsed)/float64(m.timeout))
		}
		inner := lipgloss.JoinVertical(lipgloss.Center,
			"",
			TitleStyle.Render(m.spinner.View()+" SEARCHING FOR SERVERS"),
			"",
			SubtitleStyle.Render("Browsing "+discovery.ServiceType+" on the local network..."),
			"",
			m.bar.ViewAs(fraction),
			"",
		)
		content = lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, inner)
		helpText = m.help.View(m.keys)

	case m.Err != nil:
		content = "\n  " + ErrorMessageStyle.Render(fmt.Sprintf("%s Scan failed: %v", FailureMarker, m.Err)) + "\n"
		helpText = m.help.View(m.keys)

	case len(m.Services.Items()) == 0:
		content = "\n  " + WarningTitleStyle.Render(WarningMarker+" No servers found") + "\n\n" +
			TroubleshootingItemStyle.Render("    • Start one with 'wsproto-server serve --advertise'\n    • mDNS does not cross routers or most VPNs\n    • Press m to enter a URL")
		helpText = m.help.View(m.keys)

	default:
		content = m.Services.View()
		helpText = m.help.View(m.keys)
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, "", helpText)
}

// RunPicker shows the picker and returns the chosen URL, or "" when the user
// quit without choosing.
func RunPicker(scan ScanFunc, timeout time.Duration) (string, error) {
	p := tea.NewProgram(NewPickerModel(scan, timeout), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	return final.(PickerModel).Chosen, nil
}
