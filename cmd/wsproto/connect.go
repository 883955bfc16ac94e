package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/config"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/transport"
	"github.com/muurk/wsproto/internal/ui"
	"github.com/muurk/wsproto/internal/urls"
	"github.com/muurk/wsproto/internal/version"
	"github.com/muurk/wsproto/internal/websocket"
)

// Connect command flags
type connectOptions struct {
	profile      string
	subprotocols []string
	headers      []string
	tlsMin       string
	tlsMax       string
	ciphers      []string
	caFile       string
	serverName   string
	insecure     bool
	proxyEnv     bool
	pingInterval time.Duration
	fragmentSize int
	maxMessage   int
	send         []string
	tui          bool
	saveAs       string
}

var connectOpts connectOptions

var connectCmd = &cobra.Command{
	Use:   "connect [url]",
	Short: "Open a WebSocket session",
	Long: `Connect to a WebSocket server and exchange messages.

Lines typed on stdin are sent as text messages. Lines starting with '/' are
commands: /ping, /binary, /close, /quit and /help.

When stdout is a terminal and --tui is set, a full-screen session is shown;
otherwise every event is printed as a line, which makes the command usable
in pipes. With --send the given messages are sent, the replies collected, and
the connection closed.

'/close 4000 done' sends a close frame with an application code; see
` + urls.CloseCodes + ` for the defined codes.`,
	Example: `  # Interactive session
  wsproto connect ws://localhost:8080/

  # TLS 1.3 only, trusting a private CA
  wsproto connect wss://echo.internal/ --tls-min 1.3 --ca-file ca.pem

  # Use a saved profile and save tweaks back under a new name
  wsproto connect --profile prod --subprotocol chat --save-profile prod-chat

  # Scripted: send two messages then close
  wsproto connect ws://localhost:8080/ --send hello --send world`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

func init() {
	addConnectFlags(connectCmd, &connectOpts)
}

func addConnectFlags(cmd *cobra.Command, o *connectOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.profile, "profile", "p", "", "Saved profile to connect with")
	f.StringSliceVar(&o.subprotocols, "subprotocol", nil, "Subprotocol to offer (repeatable)")
	f.StringArrayVarP(&o.headers, "header", "H", nil, "Extra request header 'Name: value' (repeatable)")
	f.StringVar(&o.tlsMin, "tls-min", "", "Minimum TLS version (1.0, 1.1, 1.2, 1.3)")
	f.StringVar(&o.tlsMax, "tls-max", "", "Maximum TLS version")
	f.StringSliceVar(&o.ciphers, "cipher", nil, "Allowed TLS 1.0-1.2 cipher suite (repeatable)")
	f.StringVar(&o.caFile, "ca-file", "", "PEM bundle to trust instead of the system roots")
	f.StringVar(&o.serverName, "server-name", "", "Override the TLS server name")
	f.BoolVarP(&o.insecure, "insecure", "k", false, "Skip certificate verification")
	f.BoolVar(&o.proxyEnv, "proxy-env", false, "Dial through the SOCKS5 proxy in ALL_PROXY")
	f.DurationVar(&o.pingInterval, "ping-interval", 0, "Send keepalive pings at this interval (0 = off)")
	f.IntVar(&o.fragmentSize, "fragment-size", 0, "Split outgoing messages into frames of this many bytes")
	f.IntVar(&o.maxMessage, "max-message-size", 0, "Largest accepted message in bytes (0 = default 32 MiB)")
	f.StringArrayVar(&o.send, "send", nil, "Send this message then close (repeatable)")
	f.BoolVar(&o.tui, "tui", false, "Full-screen interactive session")
	f.StringVar(&o.saveAs, "save-profile", "", "Save the effective settings as a profile")
}

func runConnect(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	profile, name, err := resolveProfile(cmd, &connectOpts, reg, args)
	if err != nil {
		return err
	}

	u, cfg, err := clientConfig(profile)
	if err != nil {
		return err
	}

	if name != "" {
		reg.TouchProfile(name)
	}
	if connectOpts.saveAs != "" {
		reg.SetProfile(connectOpts.saveAs, profile)
	}
	if name != "" || connectOpts.saveAs != "" {
		if err := saveRegistry(reg); err != nil {
			logging.Warn("Failed to save configuration", zap.Error(err))
		}
	}

	if connectOpts.tui && ui.IsTerminal() && len(connectOpts.send) == 0 {
		return runTUI(u, cfg)
	}
	return runLines(u, cfg, os.Stdin, connectOpts.send)
}

// resolveProfile merges the named (or default) profile with the flags.
func resolveProfile(cmd *cobra.Command, o *connectOptions, reg *config.Registry, args []string) (*config.Profile, string, error) {
	changed := cmd.Flags().Changed

	name := o.profile
	if name == "" && len(args) == 0 {
		name = reg.Preferences.DefaultProfile
	}

	p := &config.Profile{}
	if name != "" {
		saved := reg.GetProfile(name)
		if saved == nil {
			return nil, "", fmt.Errorf("no profile named %q (see 'wsproto config profiles')", name)
		}
		cp := *saved
		if saved.TLS != nil {
			t := *saved.TLS
			cp.TLS = &t
		}
		if saved.Headers != nil {
			cp.Headers = make(map[string]string, len(saved.Headers))
			for k, v := range saved.Headers {
				cp.Headers[k] = v
			}
		}
		p = &cp
	}
	if len(args) == 1 {
		p.URL = args[0]
	}
	if p.URL == "" {
		return nil, "", errors.New("no URL given and no default profile configured")
	}

	if changed("subprotocol") {
		p.Subprotocols = o.subprotocols
	}
	if len(o.headers) > 0 {
		if p.Headers == nil {
			p.Headers = make(map[string]string)
		}
		for _, h := range o.headers {
			k, v, ok := strings.Cut(h, ":")
			if !ok {
				k, v, ok = strings.Cut(h, "=")
			}
			if !ok || strings.TrimSpace(k) == "" {
				return nil, "", fmt.Errorf("bad header %q (want 'Name: value')", h)
			}
			p.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if changed("proxy-env") {
		p.UseProxy = o.proxyEnv
	}
	if changed("ping-interval") {
		p.PingInterval = o.pingInterval
	}
	if changed("fragment-size") {
		p.FragmentSize = o.fragmentSize
	}

	tlsFlags := []string{"tls-min", "tls-max", "cipher", "ca-file", "server-name", "insecure"}
	for _, f := range tlsFlags {
		if !changed(f) {
			continue
		}
		if p.TLS == nil {
			p.TLS = &config.TLSSection{}
		}
		switch f {
		case "tls-min":
			p.TLS.MinVersion = o.tlsMin
		case "tls-max":
			p.TLS.MaxVersion = o.tlsMax
		case "cipher":
			p.TLS.CipherSuites = o.ciphers
		case "ca-file":
			p.TLS.CAFile = o.caFile
		case "server-name":
			p.TLS.ServerName = o.serverName
		case "insecure":
			p.TLS.Insecure = o.insecure
		}
	}
	return p, name, nil
}

// clientConfig turns a profile into the connection URL and engine config.
func clientConfig(p *config.Profile) (*url.URL, websocket.Config, error) {
	var cfg websocket.Config

	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, cfg, fmt.Errorf("invalid URL %q: %w", p.URL, err)
	}

	sec, err := p.TLS.SecurityOptions()
	if err != nil {
		return nil, cfg, err
	}
	if p.TLS != nil {
		cfg.Security = &sec
	}

	header := p.Header()
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", version.UserAgent())
	}

	cfg.Header = header
	cfg.Subprotocols = p.Subprotocols
	cfg.PingInterval = p.PingInterval
	cfg.FragmentSize = p.FragmentSize
	cfg.MaxMessageSize = connectOpts.maxMessage
	cfg.Dialer = &transport.Dialer{
		Timeout:             10 * time.Second,
		KeepAlive:           30 * time.Second,
		UseEnvironmentProxy: p.UseProxy,
	}
	return u, cfg, nil
}

func runTUI(u *url.URL, cfg websocket.Config) error {
	handler, ref := ui.NewSessionHandler()
	c, err := websocket.NewClient(u, handler, cfg)
	if err != nil {
		return err
	}
	result, err := ui.RunSession(c, u.String(), ref)
	if err != nil {
		return err
	}
	if result != nil {
		ui.NewPrinter(os.Stdout).PrintResult(result)
		if result.Type == ui.ResultFailure {
			return errors.New("connection failed")
		}
	}
	return nil
}

// runLines drives a session from in, or from script when it is not empty.
func runLines(u *url.URL, cfg websocket.Config, in io.Reader, script []string) error {
	printer := ui.NewPrinter(os.Stdout)
	params := map[string]string{}
	if len(cfg.Subprotocols) > 0 {
		params["Subprotocols"] = strings.Join(cfg.Subprotocols, ", ")
	}
	if cfg.Security != nil && cfg.Security.MinVersion != 0 {
		params["TLS min"] = logging.TLSVersionName(cfg.Security.MinVersion)
	}
	printer.PrintHeader("WebSocket session", u.String(), params)

	lp := ui.NewLinePrinter(os.Stdout)
	opened := make(chan struct{})
	handler := websocket.HandlerFuncs{
		Open: func(c *websocket.Conn) {
			lp.OnOpen(c)
			close(opened)
		},
		Message: lp.OnMessage,
		Failure: lp.OnFailure,
		Close:   lp.OnClose,
	}
	c, err := websocket.NewClient(u, handler, cfg)
	if err != nil {
		return err
	}
	if err := c.Open(); err != nil {
		return err
	}

	select {
	case <-opened:
	case <-lp.Done():
		return resultError(lp.Result())
	}

	if len(script) > 0 {
		return runScript(c, lp, script)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-lp.Done():
			return resultError(lp.Result())
		case line, ok := <-lines:
			if !ok {
				// stdin closed
				_ = c.Close()
				<-lp.Done()
				return resultError(lp.Result())
			}
			if line == "" {
				continue
			}
			cmd, err := ui.ParseInput(line)
			if err != nil {
				lp.Error(err)
				continue
			}
			if cmd.Kind == ui.CmdHelp {
				lp.Help()
				continue
			}
			if err := ui.Execute(c, cmd, lp.Pong); err != nil {
				lp.Error(err)
				continue
			}
			lp.Sent(cmd)
		}
	}
}

// runScript sends each message and waits for as many replies before closing.
func runScript(c *websocket.Conn, lp *ui.LinePrinter, script []string) error {
	for _, msg := range script {
		cmd := ui.Command{Kind: ui.CmdText, Text: msg}
		if err := ui.Execute(c, cmd, nil); err != nil {
			return err
		}
		lp.Sent(cmd)
	}

	// give the server a moment to answer before closing
	select {
	case <-lp.Done():
		return resultError(lp.Result())
	case <-time.After(time.Second):
	}
	_ = c.Close()
	<-lp.Done()
	return resultError(lp.Result())
}

func resultError(r *ui.Result) error {
	if r != nil && r.Type == ui.ResultFailure {
		return errors.New("connection failed")
	}
	return nil
}
