package server

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CertificateError represents a certificate-related error (loading, generation).
type CertificateError struct {
	// Operation describes what certificate operation failed
	Operation string
	// Path is the certificate file path (if applicable)
	Path string
	// Underlying error
	Err error
}

func (e *CertificateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("certificate error during %s (file: %s): %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("certificate error during %s: %v", e.Operation, e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

// CertParams holds parameters for generating a self-signed server certificate.
type CertParams struct {
	// CommonName is the CN field (default: wsproto)
	CommonName string
	// Organization is the O field (default: wsproto)
	Organization string
	// Hosts are DNS names or IP addresses placed in the SANs
	Hosts []string
	// ValidDays is certificate validity in days (default: 365)
	ValidDays int
}

// DefaultCertParams returns parameters suitable for local development.
func DefaultCertParams() CertParams {
	return CertParams{
		CommonName:   "wsproto",
		Organization: "wsproto",
		Hosts:        []string{"localhost", "127.0.0.1", "::1"},
		ValidDays:    365,
	}
}

// ServerCert represents a generated server certificate.
type ServerCert struct {
	// CertPEM is the certificate in PEM format
	CertPEM []byte
	// KeyPEM is the private key in PEM format
	KeyPEM []byte
	// Certificate is the parsed x509 certificate
	Certificate *x509.Certificate
	// TLS is the key pair ready for a tls.Config
	TLS tls.Certificate
}

// GenerateSelfSigned creates an RSA 2048-bit, SHA-256 signed certificate for
// params.Hosts. It is kept in memory only.
func GenerateSelfSigned(params CertParams) (*ServerCert, error) {
	if params.ValidDays <= 0 {
		params.ValidDays = DefaultCertParams().ValidDays
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, &CertificateError{Operation: "generate_key", Err: err}
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, &CertificateError{Operation: "generate_serial", Err: err}
	}

	notBefore := time.Now().Add(-time.Minute)
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{params.Organization},
			CommonName:   params.CommonName,
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.AddDate(0, 0, params.ValidDays),

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
		IsCA:                  false,
	}
	for _, h := range params.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, &CertificateError{Operation: "create_certificate", Err: err}
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &CertificateError{Operation: "parse_certificate", Err: err}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CertificateError{Operation: "load_key_pair", Err: err}
	}

	return &ServerCert{
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		Certificate: cert,
		TLS:         pair,
	}, nil
}
