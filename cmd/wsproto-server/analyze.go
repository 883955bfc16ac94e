package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsproto/internal/server"
)

var analyzeDump bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <capture.jsonl>",
	Short: "Summarise a message capture",
	Long: `Read a capture written with --capture-dir and print a summary per
connection. With --dump every message is printed as a hex dump.`,
	Example: `  wsproto-server analyze captures/capture-20260102-030405.jsonl
  wsproto-server analyze captures/capture-20260102-030405.jsonl --dump`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeDump, "dump", false, "Print a hex dump of every message")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	msgs, err := server.ReadCaptures(f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\nMessages: %d\n\n", args[0], len(msgs))

	for _, s := range server.SummarizeCaptures(msgs) {
		fmt.Fprintf(out, "Connection %s (%s)\n", s.ConnID, s.RemoteAddr)
		fmt.Fprintf(out, "  received %d, sent %d, text %d, binary %d, %d bytes\n",
			s.Received, s.Sent, s.Text, s.Binary, s.Bytes)
		fmt.Fprintf(out, "  %s .. %s (%s)\n",
			s.First.Format("15:04:05.000"), s.Last.Format("15:04:05.000"), s.Last.Sub(s.First))
		if s.InvalidText > 0 {
			fmt.Fprintf(out, "  WARNING: %d text message(s) with invalid UTF-8\n", s.InvalidText)
		}
		fmt.Fprintln(out)
	}

	if !analyzeDump {
		return nil
	}
	for i := range msgs {
		m := &msgs[i]
		payload, err := m.Payload()
		if err != nil {
			fmt.Fprintf(out, "#%d: bad payload hex: %v\n", m.MessageNum, err)
			continue
		}
		fmt.Fprintf(out, "#%d %s %s %s %d bytes\n", m.MessageNum, m.ConnID, m.Direction, m.Kind, len(payload))
		fmt.Fprintln(out, server.HexDump(payload))
	}
	return nil
}
