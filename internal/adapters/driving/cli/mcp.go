package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weave-nn/weaver/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so assistants can query the vault
cache and control workflows.

By default, the server communicates over stdio using JSON-RPC. Use --port to
start an HTTP server instead. Use --watch to run the watcher and engine in the
same process, so triggered workflows run immediately.

Examples:
  # Stdio mode, query and control only
  weaver mcp serve

  # HTTP mode with the watcher and engine running
  weaver mcp serve --port 8080 --watch

Desktop assistant configuration:
  {
    "mcpServers": {
      "weaver": {
        "command": "/path/to/weaver",
        "args": ["mcp", "serve", "--watch"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("watch", false, "Also run the watcher and engine")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("getting watch flag: %w", err)
	}

	control, err := requireControl()
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(&mcp.Ports{Control: control})
	if err != nil {
		return err
	}
	var d Daemon
	if watch {
		if d, err = requireDaemon(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if d != nil {
		g.Go(func() error { return d.Run(ctx, "") })
	}
	g.Go(func() error {
		// The stdio transport returns when the client hangs up; stop the
		// daemon with it.
		defer cancel()
		if port > 0 {
			addr := fmt.Sprintf(":%d", port)
			fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
			return server.RunHTTP(ctx, addr)
		}
		return server.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
