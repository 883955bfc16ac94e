package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		tmp := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tmp)
		configDir, err := GetConfigDir()
		if err != nil {
			t.Fatalf("GetConfigDir() error = %v", err)
		}
		if want := filepath.Join(tmp, "wsproto"); configDir != want {
			t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
		}
		return
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "wsproto") {
		t.Errorf("GetConfigDir() = %v, should contain 'wsproto'", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("NewRegistry().Version = %v, want %v", reg.Version, CurrentVersion)
	}
	if reg.Profiles == nil {
		t.Error("NewRegistry().Profiles should not be nil")
	}
	if reg.Server == nil || reg.Server.Port != 8080 || reg.Server.Path != "/" {
		t.Errorf("NewRegistry().Server = %+v", reg.Server)
	}
	if reg.Preferences.DiscoverTimeout != 5 {
		t.Errorf("DiscoverTimeout = %v, want 5", reg.Preferences.DiscoverTimeout)
	}
}

func TestRegistryProfiles(t *testing.T) {
	reg := &Registry{Version: CurrentVersion, Preferences: &Preferences{}}

	reg.SetProfile("prod", &Profile{URL: "wss://example.com/"})
	if p := reg.GetProfile("prod"); p == nil || p.URL != "wss://example.com/" {
		t.Fatalf("GetProfile(prod) = %+v", p)
	}
	if reg.GetProfile("missing") != nil {
		t.Error("GetProfile(missing) should be nil")
	}

	before := time.Now()
	reg.TouchProfile("prod")
	if reg.GetProfile("prod").LastUsed.Before(before) {
		t.Error("TouchProfile did not update LastUsed")
	}

	reg.Preferences.DefaultProfile = "prod"
	if !reg.DeleteProfile("prod") {
		t.Fatal("DeleteProfile(prod) = false")
	}
	if reg.DeleteProfile("prod") {
		t.Error("second DeleteProfile(prod) = true")
	}
	if reg.Preferences.DefaultProfile != "" {
		t.Errorf("DefaultProfile = %q after delete", reg.Preferences.DefaultProfile)
	}
}

func TestProfileHeader(t *testing.T) {
	p := &Profile{URL: "ws://x/", Headers: map[string]string{"authorization": "Bearer t"}}
	h := p.Header()
	if got := h.Get("Authorization"); got != "Bearer t" {
		t.Errorf("Authorization = %q", got)
	}
	if (&Profile{}).Header() != nil {
		t.Error("empty headers should give nil")
	}
}

func TestTLSSectionSecurityOptions(t *testing.T) {
	tests := []struct {
		name    string
		section *TLSSection
		wantErr bool
		check   func(t *testing.T, min, max uint16, suites []uint16)
	}{
		{
			name:    "nil section",
			section: nil,
			check: func(t *testing.T, min, max uint16, suites []uint16) {
				if min != 0 || max != 0 || len(suites) != 0 {
					t.Errorf("expected zero options, got %x %x %v", min, max, suites)
				}
			},
		},
		{
			name:    "versions and suites",
			section: &TLSSection{MinVersion: "1.2", MaxVersion: "1.3", CipherSuites: []string{"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"}},
			check: func(t *testing.T, min, max uint16, suites []uint16) {
				if min != tls.VersionTLS12 || max != tls.VersionTLS13 {
					t.Errorf("versions = %x..%x", min, max)
				}
				if len(suites) != 1 || suites[0] != tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256 {
					t.Errorf("suites = %v", suites)
				}
			},
		},
		{name: "bad version", section: &TLSSection{MinVersion: "2.0"}, wantErr: true},
		{name: "min above max", section: &TLSSection{MinVersion: "1.3", MaxVersion: "1.2"}, wantErr: true},
		{name: "unknown suite", section: &TLSSection{CipherSuites: []string{"TLS_NOPE"}}, wantErr: true},
		{name: "missing ca file", section: &TLSSection{CAFile: "/nonexistent/ca.pem"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := tt.section.SecurityOptions()
			if (err != nil) != tt.wantErr {
				t.Fatalf("SecurityOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, opts.MinVersion, opts.MaxVersion, opts.CipherSuites)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.Server.GenerateCert = true
	reg.Server.PingInterval = 15 * time.Second
	reg.SetProfile("prod", &Profile{
		URL:          "wss://echo.example.com/chat",
		Subprotocols: []string{"chat", "superchat"},
		Headers:      map[string]string{"X-Token": "abc"},
		TLS:          &TLSSection{MinVersion: "1.3"},
		PingInterval: 30 * time.Second,
	})
	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !loaded.Server.GenerateCert || loaded.Server.PingInterval != 15*time.Second {
		t.Errorf("server section = %+v", loaded.Server)
	}
	p := loaded.GetProfile("prod")
	if p == nil {
		t.Fatal("profile prod missing after reload")
	}
	if p.URL != "wss://echo.example.com/chat" || len(p.Subprotocols) != 2 || p.PingInterval != 30*time.Second {
		t.Errorf("profile = %+v", p)
	}
	if p.TLS == nil || p.TLS.MinVersion != "1.3" {
		t.Errorf("profile tls = %+v", p.TLS)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "missing file gives defaults", path: filepath.Join(dir, "absent.yaml")},
		{name: "minimal", path: write("min.yaml", "version: 1\n")},
		{name: "durations", path: write("dur.yaml", "version: 1\nserver:\n  ping_interval: 10s\n")},
		{name: "wrong version", path: write("v2.yaml", "version: 2\n"), wantErr: "unsupported config version"},
		{name: "garbage", path: write("bad.yaml", "version: [\n"), wantErr: "failed to parse"},
		{name: "profile without url", path: write("nourl.yaml", "version: 1\nprofiles:\n  x:\n    subprotocols: [a]\n"), wantErr: "has no url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := LoadFile(tt.path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("LoadFile() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if reg.Server == nil || reg.Preferences == nil || reg.Profiles == nil {
				t.Errorf("defaults not filled: %+v", reg)
			}
		})
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfig(path); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if err := CreateDefaultConfig(path); err == nil {
		t.Error("CreateDefaultConfig() should refuse to overwrite")
	}
	reg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Preferences.DefaultProfile != "local" || reg.GetProfile("local") == nil {
		t.Errorf("default config = %+v", reg.Preferences)
	}
}

func TestLoadRegistryUsesConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on linux")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg := NewRegistry()
	reg.SetProfile("saved", &Profile{URL: "ws://saved/"})
	if err := reg.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReloadRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.GetProfile("saved") == nil {
		t.Error("profile saved not found via ReloadRegistry")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
