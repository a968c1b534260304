package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "synobridge",
	Short: "MCP bridge for Synology NAS",
	Long: `synobridge exposes a Synology NAS's FileStation and Download Station
APIs as MCP tools, served over stdio and an optional outbound
WebSocket relay.

Running without a subcommand starts the bridge, same as 'synobridge serve'.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	RunE:    runServe,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Suppress errors from being printed twice
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
