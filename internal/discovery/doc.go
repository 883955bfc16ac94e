// Package discovery advertises and finds wsproto servers over mDNS.
//
// Servers register the "_wsproto._tcp" service type with TXT records
// describing how to connect:
//
//	path=/echo
//	tls=1
//	subprotocols=chat,superchat
//	version=1.2.0
//
// Clients browse for the service type and turn each answer into a Service
// whose URL method yields a ready ws:// or wss:// address.
//
// # Usage Example
//
//	adv, err := discovery.Advertise(discovery.Info{
//	    Instance: "wsproto on build-box",
//	    Port:     8080,
//	    Path:     "/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	services, err := discovery.NewScanner().Scan(ctx)
//	for _, svc := range services {
//	    fmt.Println(svc.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
