package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/healthchat/pkg/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			registry := server.NewRegistry(a.newChatbot, a.cfg.Server.MaxSessions)
			return server.New(registry, a.model, a.logger).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, env: HEALTHCHAT_ADDR)")
	return cmd
}
