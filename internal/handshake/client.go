package handshake

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GenerateKey returns a base64-encoded 16-byte random nonce. A nil r uses
// crypto/rand.
func GenerateKey(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var nonce [16]byte
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return "", fmt.Errorf("generating websocket key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// ComputeAccept returns the Sec-WebSocket-Accept value for key.
func ComputeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(GUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Request describes a client opening handshake.
type Request struct {
	URL          *url.URL
	Key          string
	Subprotocols []string
	// Header holds extra headers such as Origin, Cookie or Authorization.
	// Handshake headers in it are ignored.
	Header http.Header
}

// HTTPRequest returns req as an *http.Request, used when parsing the
// response so it can be matched against the method.
func (r *Request) HTTPRequest() *http.Request {
	return &http.Request{Method: http.MethodGet, URL: r.URL, Header: r.Header, Host: r.URL.Host}
}

// BuildRequest renders the Upgrade request. The Host header omits the port
// when it is the default for the scheme.
func BuildRequest(r *Request) ([]byte, error) {
	if r.URL == nil {
		return nil, fmt.Errorf("building handshake request: nil URL")
	}
	if r.URL.Host == "" {
		return nil, fmt.Errorf("building handshake request: URL %q has no host", r.URL)
	}

	target := r.URL.RequestURI()
	if target == "" {
		target = "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", target)
	fmt.Fprintf(&b, "Host: %s\r\n", hostHeader(r.URL))
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderUpgrade, upgradeToken)
	fmt.Fprintf(&b, "%s: Upgrade\r\n", HeaderConnection)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderKey, r.Key)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderVersion, Version)
	if len(r.Subprotocols) > 0 {
		fmt.Fprintf(&b, "%s: %s\r\n", HeaderProtocol, strings.Join(r.Subprotocols, ", "))
	}
	writeHeaders(&b, r.Header)
	b.WriteString("\r\n")

	return []byte(b.String()), nil
}

func hostHeader(u *url.URL) string {
	port := u.Port()
	if port == "" || port == DefaultPort(u.Scheme) {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return u.Host
}

// DefaultPort returns the port implied by a ws, wss, http or https scheme.
func DefaultPort(scheme string) string {
	switch strings.ToLower(scheme) {
	case "wss", "https":
		return "443"
	default:
		return "80"
	}
}

// IsSecureScheme reports whether scheme requires TLS.
func IsSecureScheme(scheme string) bool {
	s := strings.ToLower(scheme)
	return s == "wss" || s == "https"
}

// VerifyResponse checks the server's reply to a request sent with key and
// offering the given subprotocols. It returns the subprotocol the server
// selected, empty when none.
func VerifyResponse(resp *http.Response, key string, offered []string) (string, error) {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return "", failf(resp.StatusCode, ErrBadStatus, "%d", resp.StatusCode)
	}
	if !HeaderContainsToken(resp.Header, HeaderUpgrade, upgradeToken) {
		return "", fail(resp.StatusCode, ErrMissingUpgrade)
	}
	if !HeaderContainsToken(resp.Header, HeaderConnection, connectionUpgrade) {
		return "", fail(resp.StatusCode, ErrMissingConnection)
	}
	if got, want := resp.Header.Get(HeaderAccept), ComputeAccept(key); got != want {
		return "", failf(resp.StatusCode, ErrBadAccept, "got %q", got)
	}
	if ext := resp.Header.Get(HeaderExtensions); ext != "" {
		return "", failf(resp.StatusCode, ErrUnsupportedExtension, "%s", ext)
	}

	selected := resp.Header.Get(HeaderProtocol)
	if selected == "" {
		return "", nil
	}
	for _, p := range offered {
		if p == selected {
			return selected, nil
		}
	}
	return "", failf(resp.StatusCode, ErrUnofferedSubprotocol, "%q", selected)
}
