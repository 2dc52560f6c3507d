// Package keeper provides an MCP server exposing streekeeper's
// supervisor operations as tools. It talks to a running daemon through
// the control API.
package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/streekit/streekeeper/pkg/types"
)

// Controller is the slice of the control client the tools need.
type Controller interface {
	Status(ctx context.Context) (*types.Status, error)
	RestartServer(ctx context.Context) (*types.Status, error)
	Visualize(ctx context.Context, path string) (*types.VisualizeResult, error)
}

// NewServer creates an MCP server with the keeper tools bound to ctrl.
func NewServer(ctrl Controller) *server.MCPServer {
	s := server.NewMCPServer(
		"streekeeper",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	statusTool := mcp.NewTool("server_status",
		mcp.WithDescription("Reports the state of the supervised stree language server"),
	)
	s.AddTool(statusTool, statusHandler(ctrl))

	restartTool := mcp.NewTool("server_restart",
		mcp.WithDescription("Restarts the supervised stree language server"),
	)
	s.AddTool(restartTool, restartHandler(ctrl))

	visualizeTool := mcp.NewTool("visualize",
		mcp.WithDescription("Returns the syntax tree of a Ruby file as rendered by the language server"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the Ruby file to visualize"),
		),
	)
	s.AddTool(visualizeTool, visualizeHandler(ctrl))

	return s
}

// statusHandler handles the server_status tool call.
func statusHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := ctrl.Status(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return statusResult(status)
	}
}

// restartHandler handles the server_restart tool call.
func restartHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, err := ctrl.RestartServer(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("restart failed: %v", err)), nil
		}
		return statusResult(status)
	}
}

// visualizeHandler handles the visualize tool call.
func visualizeHandler(ctrl Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, ok := request.GetArguments()["path"].(string)
		if !ok || path == "" {
			return mcp.NewToolResultError("path argument is required"), nil
		}
		result, err := ctrl.Visualize(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("visualize failed: %v", err)), nil
		}
		return mcp.NewToolResultText(result.Tree), nil
	}
}

// statusResult renders a status snapshot as a JSON tool result.
func statusResult(status *types.Status) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
