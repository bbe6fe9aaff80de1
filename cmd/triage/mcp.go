package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(a *app) *cobra.Command {
	var (
		transport string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes workflows and guided sessions as MCP tools, so an agent can validate
and edit procedures or walk an operator through one.

Supported transports:
- stdio (default): standard input and output, for local process integration.
- sse: server-sent events over HTTP, for remote agents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.backends()
			if err != nil {
				return err
			}
			defer b.Close()

			srv := mcp.NewServer(b.Manager(a.logger), b.Documents, triage.Version, mcp.WithLogger(a.logger))

			switch transport {
			case "stdio":
				a.logger.Info("MCP server starting (stdio)")
				return srv.ServeStdio()
			case "sse":
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return srv.ServeSSE(ctx, port)
			default:
				return fmt.Errorf("unknown transport %q (stdio, sse)", transport)
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport protocol: stdio or sse")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (sse only)")
	return cmd
}
