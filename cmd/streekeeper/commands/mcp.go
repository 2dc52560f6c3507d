package commands

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/pkg/mcpserver/keeper"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the streekeeper MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout exposing the daemon's operations as
tools (server_status, server_restart, visualize). A streekeeper daemon
must already be running; use --addr if it listens on a non-default
address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := keeper.NewServer(apiClient())
		return server.ServeStdio(s)
	},
}
