package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synobridge/synobridge/internal/config"
	"github.com/synobridge/synobridge/internal/jsonrpc"
	"github.com/synobridge/synobridge/internal/provider"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog as JSON",
	Long: `Print the tool catalog the bridge would expose with the current
environment. Useful for checking which tools an MCP client will see,
including whether login/logout are present.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	prov := provider.New(cfg)
	tools, err := prov.ListTools(context.Background())
	if err != nil {
		return err
	}

	out, err := jsonrpc.MarshalIndent(map[string]any{"tools": tools})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
