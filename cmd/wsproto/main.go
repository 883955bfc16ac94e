// Wsproto is an interactive WebSocket client built on the wsproto engine.
//
// It connects to ws:// and wss:// endpoints, sends what you type and prints
// what the server sends back. Connections can be saved as named profiles in
// the configuration file, and servers on the local network can be found over
// mDNS.
//
// Usage:
//
//	wsproto [command] [flags]
//
// See 'wsproto --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/logging"
	"github.com/muurk/wsproto/internal/urls"
	"github.com/muurk/wsproto/internal/version"
)

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wsproto",
	Short: "WebSocket client",
	Long: `An RFC 6455 WebSocket client for exploring and testing servers.

Connect to a URL or a saved profile, type messages, send pings and watch the
closing handshake. Use 'wsproto discover' to find echo servers announced on
the local network.

Protocol reference: ` + urls.RFC6455,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeWithOptions(logging.Options{
			Level:      logLevel,
			File:       logFile,
			MaxSizeMB:  10,
			MaxBackups: 2,
		})
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: the OS config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when empty")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotated file")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Details("wsproto"))
	},
}
