// Command healthchat is a safety-screened health information assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set by ldflags at build time.
var version = "dev"

// globalFlags override configuration for every subcommand
type globalFlags struct {
	configPath string
	provider   string
	model      string
	logLevel   string
	tone       string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "healthchat",
		Short:         "health information assistant with safety screening",
		Long:          "Answers general health questions through an LLM. Emergencies get emergency guidance, never a model answer.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", os.Getenv("HEALTHCHAT_CONFIG"), "YAML config file (env: HEALTHCHAT_CONFIG)")
	pf.StringVar(&flags.provider, "provider", "", "LLM provider: gemini, vertex, openai, anthropic (env: HEALTHCHAT_PROVIDER)")
	pf.StringVar(&flags.model, "model", "", "model identifier (env: HEALTHCHAT_MODEL)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, error (env: HEALTHCHAT_LOG_LEVEL)")
	pf.StringVar(&flags.tone, "tone", "", "friendly, professional, simple (env: HEALTHCHAT_TONE)")

	rootCmd.AddCommand(
		newChatCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newCheckCmd(flags),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
