package transport

import (
	"context"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer opens the TCP stream for a client transport.
type Dialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration
	// UseEnvironmentProxy routes dials through the proxy named by ALL_PROXY
	// (socks5://), honouring NO_PROXY.
	UseEnvironmentProxy bool
}

// DialContext connects to addr.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	if !d.UseEnvironmentProxy {
		return nd.DialContext(ctx, network, addr)
	}
	pd := proxy.FromEnvironmentUsing(nd)
	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return pd.Dial(network, addr)
}
