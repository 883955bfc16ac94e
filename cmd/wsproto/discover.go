package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/config"
	"github.com/muurk/wsproto/internal/discovery"
	"github.com/muurk/wsproto/internal/ui"
	"github.com/muurk/wsproto/internal/urls"
)

var (
	scanTimeout time.Duration
	discoverTUI bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find WebSocket servers on the local network",
	Long: `Browse for servers advertised over mDNS/DNS-SD as ` + discovery.ServiceType + `.

wsproto-server announces itself when started with --advertise. With --tui an
interactive list is shown and the chosen server is connected to.

Service records follow DNS-SD (` + urls.DNSSD + `).`,
	Example: `  # Scan for 5 seconds (default)
  wsproto discover

  # Longer scan for busy networks
  wsproto discover --timeout 15s

  # Pick a server and connect
  wsproto discover --tui`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Scan duration (default from preferences, else 5s)")
	discoverCmd.Flags().BoolVar(&discoverTUI, "tui", false, "Choose a server interactively and connect to it")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := scanTimeout
	if timeout == 0 {
		timeout = discovery.DefaultScanTimeout
		if reg, err := loadRegistry(); err == nil && reg.Preferences.DiscoverTimeout > 0 {
			timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
		}
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout

	if discoverTUI && ui.IsTerminal() {
		chosen, err := ui.RunPicker(scanner.Scan, timeout+time.Second)
		if err != nil {
			return err
		}
		if chosen == "" {
			return nil
		}
		u, err := url.Parse(chosen)
		if err != nil {
			return err
		}
		_, cfg, err := clientConfig(defaultProfile(chosen))
		if err != nil {
			return err
		}
		return runTUI(u, cfg)
	}

	fmt.Printf("Browsing for %s (timeout: %s)...\n\n", discovery.ServiceType, timeout)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
	defer cancel()
	services, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(services) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start one with 'wsproto-server serve --advertise'")
		fmt.Println("  - mDNS does not cross routers or most VPNs")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(services))
	for i, svc := range services {
		fmt.Printf("%d. %s\n", i+1, svc.Instance)
		fmt.Printf("   URL:          %s\n", svc.URL())
		fmt.Printf("   Host:         %s\n", svc.Hostname)
		if len(svc.Subprotocols) > 0 {
			fmt.Printf("   Subprotocols: %s\n", strings.Join(svc.Subprotocols, ", "))
		}
		if v := svc.GetMetadata("version"); v != "" {
			fmt.Printf("   Version:      %s\n", v)
		}
		fmt.Println()
	}
	fmt.Println("Use 'wsproto connect <url>' to open a session")
	return nil
}

// defaultProfile is used for servers picked from discovery: discovered
// servers usually run a generated certificate, so verification is skipped.
func defaultProfile(rawURL string) *config.Profile {
	p := &config.Profile{URL: rawURL}
	if strings.HasPrefix(rawURL, "wss://") {
		p.TLS = &config.TLSSection{Insecure: true}
	}
	return p
}
