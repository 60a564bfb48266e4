package main

import (
	"context"
	"os"

	"github.com/metoro-io/mcp-golang/transport"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/spf13/cobra"

	"github.com/run-bigpig/healthchat/pkg/mcp"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the assistant as MCP tools over stdio or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// stdout carries the stdio protocol
			a, err := newApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			bot, err := a.newChatbot("")
			if err != nil {
				return err
			}

			var t transport.Transport = stdio.NewStdioServerTransport()
			if httpAddr != "" {
				t = mcphttp.NewHTTPTransport("/mcp").WithAddr(httpAddr)
				a.logger.Info(ctx, "Serving MCP over HTTP", map[string]interface{}{"addr": httpAddr, "path": "/mcp"})
			}

			ts, err := mcp.NewToolServer(bot, t, a.logger)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- ts.Serve() }()

			select {
			case err := <-errCh:
				if err != nil || httpAddr != "" {
					return err
				}
				<-ctx.Done()
				return nil
			case <-ctx.Done():
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve stateless HTTP on this address instead of stdio")
	return cmd
}
