// Wsproto-server is a WebSocket echo server built on the wsproto engine.
//
// It echoes every message back to its sender, optionally over TLS with a
// generated certificate, behind a PROXY protocol load balancer, and
// advertised on the local network over mDNS. Messages can be captured to
// JSONL files for inspection.
//
// Usage:
//
//	wsproto-server serve [flags]
//
// See 'wsproto-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wsproto-server",
	Short: "WebSocket echo server",
	Long: `A standalone RFC 6455 echo server for testing WebSocket clients.

Every text and binary message is sent back unchanged. Closing handshakes,
pings and protocol violations are handled by the wsproto engine and logged.

For the interactive client, use the separate 'wsproto' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Details("wsproto-server"))
	},
}
