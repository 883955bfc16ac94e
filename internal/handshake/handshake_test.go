package handshake

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

// RFC 6455 section 1.3 sample.
const (
	sampleKey    = "dGhlIHNhbXBsZSBub25jZQ=="
	sampleAccept = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
)

func TestComputeAccept(t *testing.T) {
	if got := ComputeAccept(sampleKey); got != sampleAccept {
		t.Errorf("ComputeAccept = %q, want %q", got, sampleAccept)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(bytes.NewReader([]byte("the sample nonce")))
	if err != nil {
		t.Fatal(err)
	}
	if key != sampleKey {
		t.Errorf("key = %q, want %q", key, sampleKey)
	}

	a, _ := GenerateKey(nil)
	b, _ := GenerateKey(nil)
	if a == b {
		t.Error("random keys collided")
	}

	if _, err := GenerateKey(bytes.NewReader([]byte("short"))); err == nil {
		t.Error("expected error from exhausted reader")
	}
}

func TestBuildRequest(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		protos   []string
		header   http.Header
		contains []string
		absent   []string
	}{
		{
			name: "default port omitted",
			url:  "ws://example.com:80/chat?room=1",
			contains: []string{
				"GET /chat?room=1 HTTP/1.1\r\n",
				"Host: example.com\r\n",
				"Upgrade: websocket\r\n",
				"Connection: Upgrade\r\n",
				"Sec-WebSocket-Key: " + sampleKey + "\r\n",
				"Sec-WebSocket-Version: 13\r\n",
			},
			absent: []string{"Sec-WebSocket-Protocol"},
		},
		{
			name:     "custom port kept",
			url:      "wss://example.com:8443",
			contains: []string{"GET / HTTP/1.1\r\n", "Host: example.com:8443\r\n"},
		},
		{
			name:     "subprotocols and extra headers",
			url:      "ws://example.com/",
			protos:   []string{"chat", "superchat"},
			header:   http.Header{"Origin": {"http://example.com"}, "Upgrade": {"evil"}},
			contains: []string{"Sec-WebSocket-Protocol: chat, superchat\r\n", "Origin: http://example.com\r\n"},
			absent:   []string{"Upgrade: evil"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatal(err)
			}
			raw, err := BuildRequest(&Request{URL: u, Key: sampleKey, Subprotocols: tt.protos, Header: tt.header})
			if err != nil {
				t.Fatal(err)
			}
			s := string(raw)
			if !strings.HasSuffix(s, "\r\n\r\n") {
				t.Error("request not terminated by blank line")
			}
			for _, c := range tt.contains {
				if !strings.Contains(s, c) {
					t.Errorf("request missing %q:\n%s", c, s)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(s, a) {
					t.Errorf("request should not contain %q", a)
				}
			}

			req, n, err := ParseRequest(raw)
			if err != nil || n != len(raw) {
				t.Fatalf("ParseRequest = %v, %d, %v", req, n, err)
			}
			if _, err := ValidateRequest(req); err != nil {
				t.Errorf("built request does not validate: %v", err)
			}
		})
	}
}

func response(status string, headers ...string) []byte {
	return []byte("HTTP/1.1 " + status + "\r\n" + strings.Join(headers, "\r\n") + "\r\n\r\n")
}

func TestVerifyResponse(t *testing.T) {
	good := []string{"Upgrade: websocket", "Connection: Upgrade", "Sec-WebSocket-Accept: " + sampleAccept}
	tests := []struct {
		name    string
		raw     []byte
		offered []string
		want    string
		wantErr error
	}{
		{name: "valid", raw: response("101 Switching Protocols", good...)},
		{
			name:    "valid with subprotocol",
			raw:     response("101 Switching Protocols", append(good, "Sec-WebSocket-Protocol: chat")...),
			offered: []string{"chat"},
			want:    "chat",
		},
		{
			name:    "lowercase tokens",
			raw:     response("101 Switching Protocols", "upgrade: WebSocket", "connection: keep-alive, upgrade", "sec-websocket-accept: "+sampleAccept),
			wantErr: nil,
		},
		{name: "wrong status", raw: response("200 OK", good...), wantErr: ErrBadStatus},
		{name: "missing upgrade", raw: response("101 Switching Protocols", good[1:]...), wantErr: ErrMissingUpgrade},
		{name: "missing connection", raw: response("101 Switching Protocols", good[0], good[2]), wantErr: ErrMissingConnection},
		{
			name:    "wrong accept",
			raw:     response("101 Switching Protocols", good[0], good[1], "Sec-WebSocket-Accept: AAAA"),
			wantErr: ErrBadAccept,
		},
		{
			name:    "unoffered subprotocol",
			raw:     response("101 Switching Protocols", append(good, "Sec-WebSocket-Protocol: other")...),
			offered: []string{"chat"},
			wantErr: ErrUnofferedSubprotocol,
		},
		{
			name:    "unrequested extension",
			raw:     response("101 Switching Protocols", append(good, "Sec-WebSocket-Extensions: permessage-deflate")...),
			wantErr: ErrUnsupportedExtension,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, n, err := ParseResponse(tt.raw, nil)
			if err != nil || resp == nil || n != len(tt.raw) {
				t.Fatalf("ParseResponse = %v, %d, %v", resp, n, err)
			}
			got, err := VerifyResponse(resp, sampleKey, tt.offered)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				var he *HandshakeError
				if !errors.As(err, &he) {
					t.Fatalf("err %T is not a *HandshakeError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("subprotocol = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseResponseIncremental(t *testing.T) {
	raw := response("101 Switching Protocols", "Upgrade: websocket", "Connection: Upgrade", "Sec-WebSocket-Accept: "+sampleAccept)
	trailing := append(append([]byte{}, raw...), 0x81, 0x00)

	for i := 0; i < len(raw); i++ {
		resp, n, err := ParseResponse(trailing[:i], nil)
		if resp != nil || n != 0 || err != nil {
			t.Fatalf("prefix %d: got %v, %d, %v", i, resp, n, err)
		}
	}
	resp, n, err := ParseResponse(trailing, nil)
	if err != nil || resp == nil {
		t.Fatal(err)
	}
	if n != len(raw) {
		t.Errorf("consumed %d, want %d leaving the frame bytes", n, len(raw))
	}

	huge := bytes.Repeat([]byte("X"), MaxHeaderSize)
	if _, _, err := ParseResponse(huge, nil); !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("err = %v, want ErrHeaderTooLarge", err)
	}
}

func newUpgradeRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/chat", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", sampleKey)
	req.Header.Set("Sec-WebSocket-Version", "13")
	return req
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(r *http.Request)
		wantErr    error
		wantStatus int
	}{
		{name: "valid", modify: func(r *http.Request) {}},
		{name: "post", modify: func(r *http.Request) { r.Method = http.MethodPost }, wantErr: ErrBadMethod, wantStatus: 405},
		{name: "no upgrade", modify: func(r *http.Request) { r.Header.Del("Upgrade") }, wantErr: ErrMissingUpgrade, wantStatus: 400},
		{name: "connection keep-alive only", modify: func(r *http.Request) { r.Header.Set("Connection", "keep-alive") }, wantErr: ErrMissingConnection, wantStatus: 400},
		{name: "old version", modify: func(r *http.Request) { r.Header.Set("Sec-WebSocket-Version", "8") }, wantErr: ErrBadVersion, wantStatus: 426},
		{name: "no key", modify: func(r *http.Request) { r.Header.Del("Sec-WebSocket-Key") }, wantErr: ErrMissingKey, wantStatus: 400},
		{name: "short key", modify: func(r *http.Request) { r.Header.Set("Sec-WebSocket-Key", "c2hvcnQ=") }, wantErr: ErrBadKey, wantStatus: 400},
		{name: "http/1.0", modify: func(r *http.Request) { r.ProtoMajor, r.ProtoMinor, r.Proto = 1, 0, "HTTP/1.0" }, wantErr: ErrBadProto, wantStatus: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newUpgradeRequest()
			tt.modify(req)
			key, err := ValidateRequest(req)
			if tt.wantErr == nil {
				if err != nil || key != sampleKey {
					t.Fatalf("ValidateRequest = %q, %v", key, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var he *HandshakeError
			if !errors.As(err, &he) || he.Status != tt.wantStatus {
				t.Fatalf("err = %v, want status %d", err, tt.wantStatus)
			}
		})
	}
}

func TestIsUpgradeRequest(t *testing.T) {
	if !IsUpgradeRequest(newUpgradeRequest().Header) {
		t.Error("upgrade request not recognised")
	}
	plain := http.Header{"Accept": {"text/html"}}
	if IsUpgradeRequest(plain) {
		t.Error("plain request classified as upgrade")
	}
	noKey := newUpgradeRequest().Header
	noKey.Del("Sec-WebSocket-Key")
	if IsUpgradeRequest(noKey) {
		t.Error("request without key classified as upgrade")
	}
}

func TestAcceptAndRejectResponses(t *testing.T) {
	raw := BuildAcceptResponse(sampleKey, "chat", http.Header{"Server": {"wsproto"}})
	resp, _, err := ParseResponse(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	proto, err := VerifyResponse(resp, sampleKey, []string{"superchat", "chat"})
	if err != nil || proto != "chat" {
		t.Fatalf("VerifyResponse = %q, %v", proto, err)
	}
	if resp.Header.Get("Server") != "wsproto" {
		t.Error("extra header dropped")
	}

	req := newUpgradeRequest()
	req.Header.Set("Sec-WebSocket-Version", "7")
	_, verr := ValidateRequest(req)
	rej := string(BuildRejectResponse(verr))
	if !strings.HasPrefix(rej, "HTTP/1.1 426 Upgrade Required\r\n") {
		t.Errorf("reject status line: %q", rej)
	}
	if !strings.Contains(rej, "Sec-WebSocket-Version: 13\r\n") {
		t.Error("426 response does not advertise version 13")
	}
}

func TestNegotiateSubprotocol(t *testing.T) {
	if got := NegotiateSubprotocol([]string{"a", "b"}, []string{"b", "a"}); got != "b" {
		t.Errorf("got %q, want server preference b", got)
	}
	if got := NegotiateSubprotocol([]string{"a"}, []string{"c"}); got != "" {
		t.Errorf("got %q, want none", got)
	}
}
