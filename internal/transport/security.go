package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
)

// ErrUntrusted is returned when the trust callback rejects the peer chain,
// or strict trust is enabled without a callback.
var ErrUntrusted = errors.New("peer certificate chain not trusted")

// TrustFunc decides whether a peer certificate chain is acceptable. chain[0]
// is the leaf. A non-nil error rejects the chain.
type TrustFunc func(chain []*x509.Certificate) error

// SecurityOptions configures TLS for a transport.
type SecurityOptions struct {
	// MinVersion and MaxVersion bound the TLS version, e.g. tls.VersionTLS12.
	// Zero leaves the crypto/tls default.
	MinVersion uint16
	MaxVersion uint16
	// CipherSuites restricts TLS 1.0-1.2 suites. TLS 1.3 suites are not
	// configurable.
	CipherSuites []uint16
	// StrictTrust hands the peer chain to Trust instead of verifying it
	// against the system or RootCAs. A nil Trust then rejects every peer.
	StrictTrust bool
	// Trust, when StrictTrust is off, runs after the standard verification
	// as an additional check.
	Trust TrustFunc
	// ServerName overrides the name sent in SNI and verified.
	ServerName string
	// RootCAs replaces the system pool for standard verification.
	RootCAs *x509.CertPool
	// InsecureSkipVerify disables all verification. For development only.
	InsecureSkipVerify bool
}

// Validate checks the options for consistency.
func (o *SecurityOptions) Validate() error {
	if o.MinVersion != 0 && o.MaxVersion != 0 && o.MinVersion > o.MaxVersion {
		return fmt.Errorf("invalid security options: min version %s above max version %s",
			logging.TLSVersionName(o.MinVersion), logging.TLSVersionName(o.MaxVersion))
	}
	for _, v := range []uint16{o.MinVersion, o.MaxVersion} {
		if v != 0 && (v < tls.VersionTLS10 || v > tls.VersionTLS13) {
			return fmt.Errorf("invalid security options: unknown TLS version 0x%04x", v)
		}
	}
	for _, id := range o.CipherSuites {
		if CipherSuiteName(id) == "" {
			return fmt.Errorf("invalid security options: unknown cipher suite 0x%04x", id)
		}
	}
	if o.StrictTrust && o.InsecureSkipVerify {
		return errors.New("invalid security options: strict trust and insecure skip verify are exclusive")
	}
	return nil
}

// ClientConfig builds the client TLS configuration. serverName is used when
// ServerName is empty.
func (o *SecurityOptions) ClientConfig(serverName string) (*tls.Config, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.ServerName != "" {
		serverName = o.ServerName
	}
	cfg := &tls.Config{
		ServerName:   serverName,
		MinVersion:   o.MinVersion,
		MaxVersion:   o.MaxVersion,
		CipherSuites: o.CipherSuites,
		RootCAs:      o.RootCAs,
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}

	switch {
	case o.InsecureSkipVerify:
		cfg.InsecureSkipVerify = true
	case o.StrictTrust:
		// verification happens entirely in VerifyConnection
		cfg.InsecureSkipVerify = true
		trust := o.Trust
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return checkTrust(trust, cs)
		}
	case o.Trust != nil:
		trust := o.Trust
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return checkTrust(trust, cs)
		}
	}
	return cfg, nil
}

// ServerConfig builds a server TLS configuration presenting certs.
func (o *SecurityOptions) ServerConfig(certs []tls.Certificate) (*tls.Config, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("server TLS configuration needs a certificate")
	}
	cfg := &tls.Config{
		Certificates: certs,
		MinVersion:   o.MinVersion,
		MaxVersion:   o.MaxVersion,
		CipherSuites: o.CipherSuites,
		VerifyConnection: func(cs tls.ConnectionState) error {
			logging.LogTLSHandshake(cs.ServerName, cs.Version, cs.CipherSuite, cs.ServerName)
			return nil
		},
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg, nil
}

func checkTrust(trust TrustFunc, cs tls.ConnectionState) error {
	if trust == nil {
		return ErrUntrusted
	}
	if err := trust(cs.PeerCertificates); err != nil {
		logging.Warn("Peer certificate rejected by trust callback",
			zap.String("server_name", cs.ServerName),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrUntrusted, err)
	}
	return nil
}

// CipherSuiteName returns the IANA name of a suite known to crypto/tls, or
// empty for an unknown ID.
func CipherSuiteName(id uint16) string {
	for _, s := range tls.CipherSuites() {
		if s.ID == id {
			return s.Name
		}
	}
	for _, s := range tls.InsecureCipherSuites() {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

// CipherSuiteByName resolves a suite name as accepted on the command line.
func CipherSuiteByName(name string) (uint16, bool) {
	for _, s := range tls.CipherSuites() {
		if s.Name == name {
			return s.ID, true
		}
	}
	for _, s := range tls.InsecureCipherSuites() {
		if s.Name == name {
			return s.ID, true
		}
	}
	return 0, false
}

// ParseVersion maps "1.0" through "1.3" to a TLS version constant.
func ParseVersion(s string) (uint16, error) {
	switch s {
	case "":
		return 0, nil
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("unknown TLS version %q (expected 1.0, 1.1, 1.2 or 1.3)", s)
}
