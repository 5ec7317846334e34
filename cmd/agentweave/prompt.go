package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentweave/agent"
	"github.com/hupe1980/agentweave/flow"
)

type promptOptions struct {
	turns  int
	batch  bool
	stream bool
	output string
}

type promptReport struct {
	Prompt      string            `yaml:"prompt"`
	Content     string            `yaml:"content"`
	Turns       int               `yaml:"turns"`
	Invocations []flow.Invocation `yaml:"invocations,omitempty"`
	Diagnostics []flow.Diagnostic `yaml:"diagnostics,omitempty"`
	Error       string            `yaml:"error,omitempty"`
}

func newPromptCmd(root *rootOptions) *cobra.Command {
	opts := &promptOptions{}

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send a single prompt to the assistant",
		Example: `  agentweave prompt --turns 5 "What is (15+25)*3, divided by 2?"
  agentweave prompt --stream --turns 3 "convert 10 km to mi"
  printf 'convert 10 km to mi\n2+2\n' | agentweave prompt --batch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd, func(ctx context.Context, c *Container) error {
				if opts.batch {
					return runBatch(ctx, c, cmd.InOrStdin(), cmd.OutOrStdout())
				}
				if len(args) == 0 {
					return fmt.Errorf("prompt text is required")
				}
				if opts.stream {
					return runStream(ctx, c, strings.Join(args, " "), opts, cmd.OutOrStdout())
				}
				return runPrompt(ctx, c, strings.Join(args, " "), opts, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().IntVarP(&opts.turns, "turns", "t", 0, "Turn limit (defaults to agent.max_turns)")
	cmd.Flags().BoolVar(&opts.batch, "batch", false, "Read one prompt per line from stdin")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print the answer and tool activity as they arrive")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or yaml")

	return cmd
}

func runPrompt(ctx context.Context, c *Container, text string, opts *promptOptions, out io.Writer) error {
	res, err := c.Assistant().Run(ctx, agent.RunRequest{Prompt: text, MaxTurns: opts.turns})

	if opts.output != "yaml" {
		if err != nil {
			return err
		}
		_, werr := fmt.Fprintln(out, res.Content)
		return werr
	}

	report := promptReport{Prompt: text}
	if res != nil {
		report.Content = res.Content
		report.Turns = res.Turns
		report.Invocations = res.Trace.Invocations()
		report.Diagnostics = res.Trace.Diagnostics()
	}
	if err != nil {
		report.Error = err.Error()
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if encErr := enc.Encode(report); encErr != nil {
		return encErr
	}
	if encErr := enc.Close(); encErr != nil {
		return encErr
	}
	return err
}

func runStream(ctx context.Context, c *Container, text string, opts *promptOptions, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items, errCh := c.Assistant().StreamPrompt(ctx, text, opts.turns)

	for item := range items {
		var err error
		switch item.Kind {
		case flow.StreamText:
			_, err = fmt.Fprint(out, item.Text)
		case flow.StreamToolCall:
			_, err = fmt.Fprintf(out, "\n[call %s %s]\n", item.Call.Name, item.Call.Arguments)
		case flow.StreamToolResult:
			_, err = fmt.Fprintf(out, "[result %s] %s\n", item.Result.Name, item.Result.Response)
		case flow.StreamFinal:
			_, err = fmt.Fprintln(out)
		}
		if err != nil {
			cancel()
			for range items {
			}
			return err
		}
	}

	return <-errCh
}

func runBatch(ctx context.Context, c *Container, in io.Reader, out io.Writer) error {
	var prompts []string

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	results, err := c.Runtime().PromptAll(ctx, c.Assistant().Name(), prompts)
	if err != nil {
		return err
	}

	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "[%d] error: %v\n", i+1, r.Err)
			continue
		}
		fmt.Fprintf(out, "[%d] %s\n", i+1, r.Value)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(prompts))
	}
	return nil
}
