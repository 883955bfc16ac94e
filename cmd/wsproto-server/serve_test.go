package main

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/config"
)

// newServe returns a command with fresh flags parsed from args.
func newServe(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmd
}

func TestBuildServerConfigDefaults(t *testing.T) {
	cfg, err := buildServerConfig(newServe(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.TLS || cfg.GenerateCert {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestBuildServerConfigFileThenFlags(t *testing.T) {
	file := &config.ServerSection{
		Port:         9000,
		Path:         "/echo",
		Subprotocols: []string{"chat"},
		PingInterval: 20 * time.Second,
		TLS:          &config.TLSSection{MinVersion: "1.2"},
	}

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, port int, path string, tlsOn, gen bool, min uint16, sub []string, ping time.Duration)
	}{
		{
			name: "file only",
			check: func(t *testing.T, port int, path string, tlsOn, gen bool, min uint16, sub []string, ping time.Duration) {
				if port != 9000 || path != "/echo" || !tlsOn || !gen || min != tls.VersionTLS12 {
					t.Errorf("port=%d path=%q tls=%v gen=%v min=%x", port, path, tlsOn, gen, min)
				}
				if len(sub) != 1 || ping != 20*time.Second {
					t.Errorf("sub=%v ping=%v", sub, ping)
				}
			},
		},
		{
			name: "flags override",
			args: []string{"--port", "7000", "--path", "/x", "--tls-min", "1.3", "--subprotocol", "a", "--subprotocol", "b", "--ping-interval", "5s"},
			check: func(t *testing.T, port int, path string, tlsOn, gen bool, min uint16, sub []string, ping time.Duration) {
				if port != 7000 || path != "/x" || min != tls.VersionTLS13 {
					t.Errorf("port=%d path=%q min=%x", port, path, min)
				}
				if len(sub) != 2 || sub[1] != "b" || ping != 5*time.Second {
					t.Errorf("sub=%v ping=%v", sub, ping)
				}
			},
		},
		{
			name: "tls switched off",
			args: []string{"--tls=false"},
			check: func(t *testing.T, port int, path string, tlsOn, gen bool, min uint16, sub []string, ping time.Duration) {
				if tlsOn || gen {
					t.Errorf("tls=%v gen=%v", tlsOn, gen)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildServerConfig(newServe(t, tt.args...), file)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, cfg.Port, cfg.Path, cfg.TLS, cfg.GenerateCert, cfg.Security.MinVersion, cfg.Subprotocols, cfg.Conn.PingInterval)
		})
	}
}

func TestBuildServerConfigErrors(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, nil, 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"cert without key", []string{"--cert", "a.pem"}},
		{"missing cert file", []string{"--cert", "/nonexistent/a.pem", "--key", "/nonexistent/b.pem"}},
		{"bad tls version", []string{"--tls-min", "9"}},
		{"unknown cipher", []string{"--cipher", "TLS_FAKE"}},
		{"capture dir is a file", []string{"--capture-dir", notDir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildServerConfig(newServe(t, tt.args...), nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
