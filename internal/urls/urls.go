package urls

// Reference URLs printed in help text and troubleshooting hints.

// RFC6455 is the WebSocket protocol RFC.
const RFC6455 = "https://www.rfc-editor.org/rfc/rfc6455"

// CloseCodes is the section of RFC 6455 defining status codes.
const CloseCodes = RFC6455 + "#section-7.4"

// CloseCodeRegistry is the IANA registry of WebSocket close codes,
// including those assigned after RFC 6455.
const CloseCodeRegistry = "https://www.iana.org/assignments/websocket/websocket.xhtml#close-code-number"

// OpeningHandshake is the section of RFC 6455 describing the upgrade request
// and the 101 response.
const OpeningHandshake = RFC6455 + "#section-4"

// ProxyProtocol documents the HAProxy PROXY protocol (v1 and v2).
const ProxyProtocol = "https://www.haproxy.org/download/2.9/doc/proxy-protocol.txt"

// DNSSD is RFC 6763, DNS-Based Service Discovery, used for
// advertising servers.
const DNSSD = "https://www.rfc-editor.org/rfc/rfc6763"
