package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentweave/history"
)

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func newChatCmd(root *rootOptions) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant; history is kept in the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.withContainer(cmd, func(ctx context.Context, c *Container) error {
				conv := history.NewConversation(conversationID, c.History(), c.Assistant(), func(o *history.ConversationOptions) {
					o.Window = c.Config().History.Window
					o.Logger = c.Logger()
				})
				return runChat(ctx, conv, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "s", "cli:default", "Conversation id")

	return cmd
}

func runChat(ctx context.Context, conv *history.Conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Conversation %s (type 'exit' to quit, '/reset' to clear history)\n", conv.ID())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")

		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case exitCommands[strings.ToLower(line)]:
			return nil
		case line == "/reset":
			if err := conv.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		reply, err := conv.Send(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "Assistant: %s\n", reply)
	}
}
