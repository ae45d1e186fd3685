package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/safe-pkgs/internal/mcpserver"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run safe-pkgs as a long-lived tool server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve the MCP tool protocol over stdio")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if !serveMCP {
		return fmt.Errorf("serve requires --mcp")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	server := mcpserver.New(orch, orch.Client, cfg, logger)
	return server.Run(cmd.Context())
}
