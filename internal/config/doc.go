// Package config manages the wsproto YAML configuration file.
//
// The file holds a server section with defaults for wsproto-server and named
// client profiles for wsproto connect. Command-line flags always win over
// file values.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/wsproto/config.yaml or $HOME/.config/wsproto/config.yaml
//   - macOS: $HOME/.config/wsproto/config.yaml
//   - Windows: %LOCALAPPDATA%\wsproto\config.yaml
//
// # Example
//
//	version: 1
//	server:
//	  port: 8443
//	  generate_cert: true
//	  tls:
//	    min_version: "1.2"
//	profiles:
//	  prod:
//	    url: wss://echo.example.com/
//	    subprotocols: [chat]
//	    ping_interval: 30s
//	    tls:
//	      min_version: "1.3"
//	      ca_file: /etc/ssl/internal-ca.pem
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
