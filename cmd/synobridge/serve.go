package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synobridge/synobridge/internal/bridge"
	"github.com/synobridge/synobridge/internal/config"
	"github.com/synobridge/synobridge/internal/events"
	"github.com/synobridge/synobridge/internal/provider"
)

var (
	serveEnvFile  string
	serveLogLevel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Run the bridge on stdio, plus the WebSocket relay when ENABLE_XIAOZHI
is set.

This mode is intended to be spawned by an MCP client. Configure in the
client's server list:

  {
    "synology": {
      "command": "synobridge",
      "args": ["serve"]
    }
  }

All logging goes to stderr; stdout carries only protocol messages.`,
	RunE: runServe,
}

func init() {
	// --stdio is accepted for compatibility with MCP client configs
	serveCmd.Flags().Bool("stdio", false, "Use stdio transport (default, always enabled)")
	_ = serveCmd.Flags().MarkHidden("stdio")

	serveCmd.Flags().StringVarP(&serveEnvFile, "env", "e", "", "Path to .env file (default: ./.env when present)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Log level (debug, info, error, off)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveEnvFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := serveLogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	configureLogging(level)

	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}

	log.Printf("synobridge starting (version=%s)", version)
	log.Printf("Configuration: %s", cfg)

	envFile := serveEnvFile
	if envFile == "" {
		if _, statErr := os.Stat(".env"); statErr == nil {
			envFile = ".env"
		}
	}

	bus := events.NewBus()
	defer bus.Close()

	prov := provider.New(cfg)
	sup := bridge.NewSupervisor(cfg, prov, bus, envFile, os.Stdin, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down", sig)
		cancel()
	}()

	if err := sup.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("bridge error: %w", err)
	}

	log.Println("synobridge exiting")
	return nil
}

// configureLogging routes all logs to stderr; stdout is the protocol channel.
func configureLogging(level string) {
	switch level {
	case "debug":
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	case "info", "warn", "error", "":
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	default:
		log.SetOutput(io.Discard)
	}
}
