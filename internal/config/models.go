package config

import (
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/muurk/wsproto/internal/transport"
)

// CurrentVersion is the configuration file format version.
const CurrentVersion = 1

// Registry represents the entire user configuration file: the echo server
// settings and named client connection profiles.
type Registry struct {
	Version     int                 `yaml:"version"`
	Server      *ServerSection      `yaml:"server,omitempty"`
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// ServerSection holds defaults for wsproto-server. Flags override every field.
type ServerSection struct {
	Host          string        `yaml:"host,omitempty"`
	Port          int           `yaml:"port,omitempty"`
	Path          string        `yaml:"path,omitempty"`
	TLS           *TLSSection   `yaml:"tls,omitempty"`
	CertFile      string        `yaml:"cert_file,omitempty"`
	KeyFile       string        `yaml:"key_file,omitempty"`
	GenerateCert  bool          `yaml:"generate_cert,omitempty"`
	ProxyProtocol bool          `yaml:"proxy_protocol,omitempty"`
	Advertise     bool          `yaml:"advertise,omitempty"`
	InstanceName  string        `yaml:"instance_name,omitempty"`
	Subprotocols  []string      `yaml:"subprotocols,omitempty"`
	CaptureDir    string        `yaml:"capture_dir,omitempty"`
	MaxMessage    int           `yaml:"max_message_size,omitempty"`
	PingInterval  time.Duration `yaml:"ping_interval,omitempty"`
}

// Profile is a saved client connection.
type Profile struct {
	URL          string            `yaml:"url"`
	Subprotocols []string          `yaml:"subprotocols,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	TLS          *TLSSection       `yaml:"tls,omitempty"`
	UseProxy     bool              `yaml:"use_proxy,omitempty"` // Dial through ALL_PROXY
	PingInterval time.Duration     `yaml:"ping_interval,omitempty"`
	FragmentSize int               `yaml:"fragment_size,omitempty"`
	LastUsed     time.Time         `yaml:"last_used,omitempty"`
}

// TLSSection is the file form of transport.SecurityOptions.
type TLSSection struct {
	MinVersion   string   `yaml:"min_version,omitempty"` // "1.0" .. "1.3"
	MaxVersion   string   `yaml:"max_version,omitempty"`
	CipherSuites []string `yaml:"cipher_suites,omitempty"` // IANA names, e.g. TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256
	ServerName   string   `yaml:"server_name,omitempty"`
	CAFile       string   `yaml:"ca_file,omitempty"` // PEM bundle replacing the system roots
	Insecure     bool     `yaml:"insecure,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultProfile  string `yaml:"default_profile,omitempty"`
	DiscoverTimeout int    `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	LogLevel        string `yaml:"log_level,omitempty"`
	LogFile         string `yaml:"log_file,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  CurrentVersion,
		Server:   &ServerSection{Port: 8080, Path: "/"},
		Profiles: make(map[string]*Profile),
		Preferences: &Preferences{
			DiscoverTimeout: 5,
		},
	}
}

// GetProfile retrieves a profile by name.
// Returns nil if the profile doesn't exist.
func (r *Registry) GetProfile(name string) *Profile {
	return r.Profiles[name]
}

// SetProfile stores p under name, replacing any existing profile.
func (r *Registry) SetProfile(name string, p *Profile) {
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	r.Profiles[name] = p
}

// DeleteProfile removes a profile. It reports whether it existed.
func (r *Registry) DeleteProfile(name string) bool {
	if _, ok := r.Profiles[name]; !ok {
		return false
	}
	delete(r.Profiles, name)
	if r.Preferences != nil && r.Preferences.DefaultProfile == name {
		r.Preferences.DefaultProfile = ""
	}
	return true
}

// TouchProfile records that a profile was just used.
func (r *Registry) TouchProfile(name string) {
	if p := r.Profiles[name]; p != nil {
		p.LastUsed = time.Now()
	}
}

// Header converts the profile headers to an http.Header.
func (p *Profile) Header() http.Header {
	if len(p.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(p.Headers))
	for k, v := range p.Headers {
		h.Set(k, v)
	}
	return h
}

// SecurityOptions converts the section into transport options. A nil
// section yields the zero options.
func (t *TLSSection) SecurityOptions() (transport.SecurityOptions, error) {
	var opts transport.SecurityOptions
	if t == nil {
		return opts, nil
	}

	var err error
	if opts.MinVersion, err = transport.ParseVersion(t.MinVersion); err != nil {
		return opts, fmt.Errorf("tls min_version: %w", err)
	}
	if opts.MaxVersion, err = transport.ParseVersion(t.MaxVersion); err != nil {
		return opts, fmt.Errorf("tls max_version: %w", err)
	}
	for _, name := range t.CipherSuites {
		id, ok := transport.CipherSuiteByName(name)
		if !ok {
			return opts, fmt.Errorf("tls cipher_suites: unknown suite %q", name)
		}
		opts.CipherSuites = append(opts.CipherSuites, id)
	}
	opts.ServerName = t.ServerName
	opts.InsecureSkipVerify = t.Insecure

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return opts, fmt.Errorf("tls ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return opts, fmt.Errorf("tls ca_file: no certificates in %s", t.CAFile)
		}
		opts.RootCAs = pool
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}
