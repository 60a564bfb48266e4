package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/healthchat/pkg/chatbot"
)

const (
	rule        = "=================================================="
	thinRule    = "--------------------------------------------------"
	farewell    = "👋 Take care! Remember to consult healthcare professionals for medical advice."
	interrupted = "👋 Goodbye!"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			bot, err := a.newChatbot("")
			if err != nil {
				return err
			}
			return runREPL(ctx, bot, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runREPL reads one question per line and streams each answer to out.
// quit, exit and q end the session, clear resets it. It returns when in is
// exhausted or ctx is cancelled.
func runREPL(ctx context.Context, bot *chatbot.Chatbot, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "🏥 Health Assistant Chatbot")
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Type your health questions, or 'quit' to exit.")
	fmt.Fprintln(out, "Type 'clear' to reset the conversation.")
	fmt.Fprintln(out, thinRule)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n👤 You: ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			fmt.Fprintf(out, "\n\n%s\n", interrupted)
			return nil
		}
		if ctx.Err() != nil {
			fmt.Fprintf(out, "\n\n%s\n", interrupted)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintf(out, "\n%s\n", farewell)
			return nil
		case "clear":
			bot.ClearHistory(ctx)
			fmt.Fprintln(out, "🔄 Conversation cleared.")
			continue
		}

		fmt.Fprint(out, "\n🤖 Assistant: ")
		for fragment := range bot.ChatStream(ctx, line).Fragments() {
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
	}
}
