package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/config"
	"github.com/muurk/wsproto/internal/server"
	"github.com/muurk/wsproto/internal/version"
)

func newConnect(t *testing.T, o *connectOptions, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "connect"}
	addConnectFlags(cmd, o)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmd
}

func testRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.SetProfile("prod", &config.Profile{
		URL:          "wss://echo.example.com/",
		Subprotocols: []string{"chat"},
		Headers:      map[string]string{"X-Team": "core"},
		TLS:          &config.TLSSection{MinVersion: "1.2"},
	})
	reg.Preferences.DefaultProfile = "prod"
	return reg
}

func TestResolveProfile(t *testing.T) {
	tests := []struct {
		name     string
		flags    []string
		args     []string
		wantName string
		check    func(t *testing.T, p *config.Profile)
	}{
		{
			name:     "default profile",
			wantName: "prod",
			check: func(t *testing.T, p *config.Profile) {
				if p.URL != "wss://echo.example.com/" || p.Subprotocols[0] != "chat" {
					t.Errorf("profile = %+v", p)
				}
			},
		},
		{
			name: "url argument skips the default",
			args: []string{"ws://localhost:8080/"},
			check: func(t *testing.T, p *config.Profile) {
				if p.URL != "ws://localhost:8080/" || len(p.Subprotocols) != 0 {
					t.Errorf("profile = %+v", p)
				}
			},
		},
		{
			name:     "flags override profile",
			flags:    []string{"--profile", "prod", "--subprotocol", "superchat", "-H", "Authorization: Bearer x", "--tls-min", "1.3", "-k"},
			wantName: "prod",
			check: func(t *testing.T, p *config.Profile) {
				if p.Subprotocols[0] != "superchat" {
					t.Errorf("subprotocols = %v", p.Subprotocols)
				}
				if p.Headers["Authorization"] != "Bearer x" || p.Headers["X-Team"] != "core" {
					t.Errorf("headers = %v", p.Headers)
				}
				if p.TLS.MinVersion != "1.3" || !p.TLS.Insecure {
					t.Errorf("tls = %+v", p.TLS)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := testRegistry()
			var o connectOptions
			p, name, err := resolveProfile(newConnect(t, &o, tt.flags...), &o, reg, tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			tt.check(t, p)
			if saved := reg.GetProfile("prod"); saved.TLS.MinVersion != "1.2" || saved.Headers["Authorization"] != "" {
				t.Error("flags leaked into the saved profile")
			}
		})
	}
}

func TestResolveProfileErrors(t *testing.T) {
	tests := []struct {
		name  string
		reg   *config.Registry
		flags []string
	}{
		{"unknown profile", testRegistry(), []string{"--profile", "nope"}},
		{"no url and no default", config.NewRegistry(), nil},
		{"bad header", testRegistry(), []string{"-H", "nocolon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o connectOptions
			if _, _, err := resolveProfile(newConnect(t, &o, tt.flags...), &o, tt.reg, nil); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	p := &config.Profile{
		URL:          "wss://echo.example.com/chat",
		Subprotocols: []string{"chat"},
		TLS:          &config.TLSSection{MinVersion: "1.3"},
		UseProxy:     true,
		PingInterval: 15 * time.Second,
	}
	u, cfg, err := clientConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "echo.example.com" {
		t.Errorf("host = %q", u.Host)
	}
	if cfg.Security == nil || cfg.Security.MinVersion != tls.VersionTLS13 {
		t.Errorf("security = %+v", cfg.Security)
	}
	if got := cfg.Header.Get("User-Agent"); got != version.UserAgent() {
		t.Errorf("User-Agent = %q", got)
	}
	if !cfg.Dialer.UseEnvironmentProxy || cfg.PingInterval != 15*time.Second {
		t.Errorf("dialer = %+v ping = %v", cfg.Dialer, cfg.PingInterval)
	}

	if _, _, err := clientConfig(&config.Profile{URL: "ws://x/", TLS: &config.TLSSection{MaxVersion: "4"}}); err == nil {
		t.Error("expected an error for a bad TLS version")
	}
}

func TestDefaultProfile(t *testing.T) {
	if p := defaultProfile("wss://10.0.0.5:8443/"); p.TLS == nil || !p.TLS.Insecure {
		t.Errorf("wss profile = %+v", p)
	}
	if p := defaultProfile("ws://10.0.0.5:8080/"); p.TLS != nil {
		t.Errorf("ws profile = %+v", p)
	}
}

func TestRunLinesScriptAgainstEchoServer(t *testing.T) {
	srv, err := server.New(&server.Config{Host: "127.0.0.1", Port: 0, Path: "/"})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	u, cfg, err := clientConfig(&config.Profile{URL: fmt.Sprintf("ws://%s/", srv.Addr())})
	if err != nil {
		t.Fatal(err)
	}
	if err := runLines(u, cfg, strings.NewReader(""), []string{"hello", "world"}); err != nil {
		t.Fatalf("runLines() error = %v", err)
	}
}

func TestRunLinesStdinClosed(t *testing.T) {
	srv, err := server.New(&server.Config{Host: "127.0.0.1", Port: 0, Path: "/"})
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	u, cfg, err := clientConfig(&config.Profile{URL: fmt.Sprintf("ws://%s/", srv.Addr())})
	if err != nil {
		t.Fatal(err)
	}
	in := strings.NewReader("hi\n/ping p\n/bogus\n")
	if err := runLines(u, cfg, in, nil); err != nil {
		t.Fatalf("runLines() error = %v", err)
	}
}

func TestRunLinesRefused(t *testing.T) {
	u, cfg, err := clientConfig(&config.Profile{URL: "ws://127.0.0.1:1/"})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Dialer.Timeout = time.Second
	if err := runLines(u, cfg, strings.NewReader(""), nil); err == nil {
		t.Error("expected a failure for a refused connection")
	}
}
