package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// TXT record keys published with every advertisement.
const (
	TXTPath         = "path"
	TXTSecure       = "tls"
	TXTSubprotocols = "subprotocols"
	TXTVersion      = "version"
)

// Service represents a wsproto server found on the network
type Service struct {
	// Instance is the advertised instance name (e.g., "wsproto on build-box")
	Instance string

	// Hostname is the mDNS hostname (e.g., "build-box.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the server has no IPv4 address
	IP string

	// Port is the listening port
	Port int

	// Path is the request path the server accepts upgrades on
	Path string

	// Secure is true when the server expects TLS (wss)
	Secure bool

	// Subprotocols lists the subprotocols the server supports
	Subprotocols []string

	// Metadata contains the raw TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the service was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.URL())
}

// URL returns the ws:// or wss:// URL of the service.
func (s *Service) URL() string {
	scheme := "ws"
	if s.Secure {
		scheme = "wss"
	}
	path := s.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(s.IP, strconv.Itoa(s.Port)), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// Info describes what a server publishes about itself.
type Info struct {
	Instance     string
	Port         int
	Path         string
	Secure       bool
	Subprotocols []string
	Version      string
}

// TXT renders the info as TXT record strings.
func (i Info) TXT() []string {
	path := i.Path
	if path == "" {
		path = "/"
	}
	txt := []string{TXTPath + "=" + path}
	if i.Secure {
		txt = append(txt, TXTSecure+"=1")
	} else {
		txt = append(txt, TXTSecure+"=0")
	}
	if len(i.Subprotocols) > 0 {
		txt = append(txt, TXTSubprotocols+"="+strings.Join(i.Subprotocols, ","))
	}
	if i.Version != "" {
		txt = append(txt, TXTVersion+"="+i.Version)
	}
	return txt
}

// parseTXT splits "key=value" records. A key without "=" maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}
	return metadata
}
