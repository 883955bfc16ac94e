package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/transport"
)

// LoadCertificate loads a PEM certificate chain and private key from disk.
func LoadCertificate(certPath, keyPath string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, &CertificateError{Operation: "load", Path: certPath, Err: err}
	}
	logging.Info("TLS certificate loaded from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)
	return cert, nil
}

// NewTLSConfig builds the listener TLS configuration for cert, restricted by
// the versions and cipher suites in sec.
func NewTLSConfig(cert tls.Certificate, sec transport.SecurityOptions) (*tls.Config, error) {
	cfg, err := sec.ServerConfig([]tls.Certificate{cert})
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	return cfg, nil
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	if config == nil {
		return map[string]interface{}{"enabled": false}
	}

	var cipherNames []string
	for _, id := range config.CipherSuites {
		cipherNames = append(cipherNames, transport.CipherSuiteName(id))
	}
	if len(cipherNames) == 0 {
		cipherNames = []string{"crypto/tls defaults"}
	}

	maxVersion := "TLS 1.3"
	if config.MaxVersion != 0 {
		maxVersion = logging.TLSVersionName(config.MaxVersion)
	}

	return map[string]interface{}{
		"enabled":         true,
		"min_version":     logging.TLSVersionName(config.MinVersion),
		"max_version":     maxVersion,
		"cipher_suites":   cipherNames,
		"num_certs":       len(config.Certificates),
		"session_tickets": !config.SessionTicketsDisabled,
	}
}
