package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/healthchat/pkg/logging"
	"github.com/run-bigpig/healthchat/pkg/safety"
	"github.com/run-bigpig/healthchat/pkg/textutil"
)

func newCheckCmd(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <text>",
		Short: "Classify text without calling a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := safety.NewFilter(safety.WithLogger(logging.NewNop()))
			printCheck(cmd.Context(), cmd.OutOrStdout(), filter, strings.Join(args, " "))
			return nil
		},
	}
}

func printCheck(ctx context.Context, out io.Writer, filter *safety.Filter, text string) {
	check := filter.CheckInput(ctx, textutil.Sanitize(text))

	flags := "none"
	if len(check.Flags) > 0 {
		flags = strings.Join(check.Flags.Strings(), ", ")
	}
	fmt.Fprintf(out, "risk:  %s\n", check.RiskLevel)
	fmt.Fprintf(out, "flags: %s\n", flags)
	fmt.Fprintf(out, "safe:  %t\n", check.IsSafe)

	if script := filter.EmergencyResponse(check.Flags); script != "" {
		fmt.Fprintf(out, "\n%s\n", script)
		return
	}
	if d := safety.Disclaimer(check.RiskLevel); d != "" {
		fmt.Fprintf(out, "\ndisclaimer:%s\n", d)
	}
}
