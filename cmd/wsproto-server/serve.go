package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/config"
	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/server"
	"github.com/muurk/wsproto/internal/urls"
)

// Serve command flags
var (
	configPath    string
	host          string
	port          int
	path          string
	useTLS        bool
	certPath      string
	keyPath       string
	tlsMin        string
	tlsMax        string
	cipherSuites  []string
	proxyProtocol bool
	advertise     bool
	instanceName  string
	subprotocols  []string
	captureDir    string
	maxMessage    int
	pingInterval  time.Duration
	logLevel      string
	logFile       string
	logJSON       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the echo server",
	Long: `Start the echo server and accept WebSocket connections until interrupted.

Defaults come from the server section of the configuration file
(see 'wsproto config path'); flags override them.

With --tls and no --cert/--key, an in-memory self-signed certificate for
localhost is generated at startup. On SIGINT or SIGTERM every open connection
is closed with 1001 (going away) before the process exits.

--proxy-protocol expects the header described at ` + urls.ProxyProtocol + `.`,
	Example: `  # Plain ws:// on port 8080
  wsproto-server serve

  # wss:// with a generated certificate, TLS 1.3 only
  wsproto-server serve --tls --port 8443 --tls-min 1.3

  # Behind HAProxy with send-proxy-v2, announced over mDNS
  wsproto-server serve --proxy-protocol --advertise --name lab-echo

  # Offer subprotocols and capture traffic
  wsproto-server serve --subprotocol chat --subprotocol superchat --capture-dir ./captures`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Configuration file (default: the OS config directory)")
	f.StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	f.IntVar(&port, "port", 8080, "Listen port")
	f.StringVar(&path, "path", "/", "Request path accepting upgrades (empty = any)")
	f.BoolVar(&useTLS, "tls", false, "Serve wss:// (generates a certificate unless --cert and --key are set)")
	f.StringVar(&certPath, "cert", "", "Path to TLS certificate file")
	f.StringVar(&keyPath, "key", "", "Path to TLS private key file")
	f.StringVar(&tlsMin, "tls-min", "", "Minimum TLS version (1.0, 1.1, 1.2, 1.3)")
	f.StringVar(&tlsMax, "tls-max", "", "Maximum TLS version")
	f.StringSliceVar(&cipherSuites, "cipher", nil, "Allowed TLS 1.0-1.2 cipher suite (repeatable)")
	f.BoolVar(&proxyProtocol, "proxy-protocol", false, "Require a PROXY protocol v1/v2 header on every connection")
	f.BoolVar(&advertise, "advertise", false, "Advertise the server over mDNS")
	f.StringVar(&instanceName, "name", "", "mDNS instance name")
	f.StringSliceVar(&subprotocols, "subprotocol", nil, "Supported subprotocol in preference order (repeatable)")
	f.StringVar(&captureDir, "capture-dir", "", "Directory to write message captures (disabled if not specified)")
	f.IntVar(&maxMessage, "max-message-size", 0, "Largest accepted message in bytes (0 = default 32 MiB)")
	f.DurationVar(&pingInterval, "ping-interval", 0, "Send keepalive pings at this interval (0 = off)")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&logFile, "log-file", "", "Write logs to a rotated file instead of stdout")
	f.BoolVar(&logJSON, "log-json", false, "Emit JSON log lines")
}

func runServe(cmd *cobra.Command, args []string) error {
	reg, err := loadConfig()
	if err != nil {
		return err
	}

	level := logLevel
	if !cmd.Flags().Changed("log-level") && reg.Preferences.LogLevel != "" {
		level = reg.Preferences.LogLevel
	}
	file := logFile
	if file == "" {
		file = reg.Preferences.LogFile
	}
	if err := logging.InitializeWithOptions(logging.Options{
		Level:      level,
		JSON:       logJSON,
		File:       file,
		MaxSizeMB:  50,
		MaxBackups: 3,
	}); err != nil {
		return err
	}
	defer logging.Sync()

	cfg, err := buildServerConfig(cmd, reg.Server)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

func loadConfig() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadRegistry()
}

// buildServerConfig starts from the file section and applies every flag the
// user set explicitly.
func buildServerConfig(cmd *cobra.Command, file *config.ServerSection) (*server.Config, error) {
	if file == nil {
		file = &config.ServerSection{}
	}
	changed := cmd.Flags().Changed

	cfg := &server.Config{
		Host:          file.Host,
		Port:          file.Port,
		Path:          file.Path,
		CertPath:      file.CertFile,
		KeyPath:       file.KeyFile,
		GenerateCert:  file.GenerateCert,
		ProxyProtocol: file.ProxyProtocol,
		Advertise:     file.Advertise,
		InstanceName:  file.InstanceName,
		Subprotocols:  file.Subprotocols,
		CaptureDir:    file.CaptureDir,
	}
	cfg.Conn.MaxMessageSize = file.MaxMessage
	cfg.Conn.PingInterval = file.PingInterval
	cfg.TLS = file.TLS != nil || file.GenerateCert || file.CertFile != ""

	if changed("host") || cfg.Host == "" {
		cfg.Host = host
	}
	if changed("port") || cfg.Port == 0 {
		cfg.Port = port
	}
	if changed("path") {
		cfg.Path = path
	}
	if changed("cert") {
		cfg.CertPath = certPath
	}
	if changed("key") {
		cfg.KeyPath = keyPath
	}
	if changed("tls") {
		cfg.TLS = useTLS
	}
	if changed("proxy-protocol") {
		cfg.ProxyProtocol = proxyProtocol
	}
	if changed("advertise") {
		cfg.Advertise = advertise
	}
	if changed("name") {
		cfg.InstanceName = instanceName
	}
	if changed("subprotocol") {
		cfg.Subprotocols = subprotocols
	}
	if changed("capture-dir") {
		cfg.CaptureDir = captureDir
	}
	if changed("max-message-size") {
		cfg.Conn.MaxMessageSize = maxMessage
	}
	if changed("ping-interval") {
		cfg.Conn.PingInterval = pingInterval
	}

	section := file.TLS
	if changed("tls-min") || changed("tls-max") || changed("cipher") {
		merged := config.TLSSection{}
		if section != nil {
			merged = *section
		}
		if changed("tls-min") {
			merged.MinVersion = tlsMin
		}
		if changed("tls-max") {
			merged.MaxVersion = tlsMax
		}
		if changed("cipher") {
			merged.CipherSuites = cipherSuites
		}
		section = &merged
		if !changed("tls") {
			cfg.TLS = true
		}
	}
	sec, err := section.SecurityOptions()
	if err != nil {
		return nil, err
	}
	cfg.Security = sec

	if (cfg.CertPath == "") != (cfg.KeyPath == "") {
		return nil, fmt.Errorf("both --cert and --key must be provided together, or neither (will auto-generate)")
	}
	if cfg.CertPath != "" {
		cfg.TLS = true
		cfg.GenerateCert = false
		for _, p := range []string{cfg.CertPath, cfg.KeyPath} {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				return nil, fmt.Errorf("file not found: %s", p)
			}
		}
	} else if cfg.TLS {
		cfg.GenerateCert = true
	}

	if cfg.CaptureDir != "" {
		info, err := os.Stat(cfg.CaptureDir)
		if err != nil {
			return nil, fmt.Errorf("cannot access capture directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("capture path is not a directory: %s", cfg.CaptureDir)
		}
	}
	return cfg, nil
}
