package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/agentweave/agent"
	"github.com/hupe1980/agentweave/pipeline"
	"github.com/hupe1980/agentweave/tool"
)

const routerPreamble = `Classify the user's request into exactly one category and answer with that single word:
math - arithmetic or calculations
units - converting quantities between units
general - anything else`

func newRouteCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route [text]",
		Short: "Classify a request and hand it to a specialist agent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withContainer(cmd, func(ctx context.Context, c *Container) error {
				step, err := buildRouter(c)
				if err != nil {
					return err
				}

				out, err := pipeline.TryCall(ctx, step, strings.Join(args, " "))
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			})
		},
	}

	return cmd
}

// buildRouter wires a classifier agent in front of the math, units and
// general specialists.
func buildRouter(c *Container) (pipeline.Step[string, string], error) {
	rt := c.Runtime()
	cfg := c.Config()

	classifier, err := rt.NewAgent("router", c.Model(), agent.WithPreamble(routerPreamble))
	if err != nil {
		return nil, err
	}

	specialist := func(name, preamble, toolName string) (pipeline.Step[string, string], error) {
		opts := []func(o *agent.Options){agentOptions(cfg), agent.WithPreamble(preamble)}
		if t := findTool(c.Tools(), toolName); t != nil {
			opts = append(opts, agent.WithTools(t))
		}

		a, err := rt.NewAgent(name, c.Model(), opts...)
		if err != nil {
			return nil, err
		}

		p, err := rt.Prompter(a.Name())
		if err != nil {
			return nil, err
		}
		return pipeline.Prompt(p), nil
	}

	math, err := specialist("math", "You solve arithmetic step by step using the calculator tool.", "calculator")
	if err != nil {
		return nil, err
	}

	units, err := specialist("units", "You convert quantities using the convert_units tool.", "convert_units")
	if err != nil {
		return nil, err
	}

	return pipeline.Route(pipeline.Prompt(classifier), map[string]pipeline.Step[string, string]{
		"math":    math,
		"units":   units,
		"general": pipeline.Prompt(c.Assistant()),
	}, func(o *pipeline.RouteOptions) {
		o.Key = pipeline.TrimLower
		o.Logger = c.Logger()
	})
}

func findTool(tools []tool.Tool, name string) tool.Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}
