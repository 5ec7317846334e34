package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentweave/config"
)

type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool

	// containerOpts are applied to every container the commands build.
	containerOpts []func(o *containerOptions)
}

func newRootCmd(containerOpts ...func(o *containerOptions)) *cobra.Command {
	opts := &rootOptions{containerOpts: containerOpts}

	cmd := &cobra.Command{
		Use:           "agentweave",
		Short:         "Run agents and agent pipelines",
		Long:          "agentweave runs tool-using agents, multi-turn chats and routed pipelines against OpenAI or Anthropic models.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the configuration")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	cmd.AddCommand(
		newPromptCmd(opts),
		newChatCmd(opts),
		newRouteCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// loadEnvFile loads path when it exists.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withContainer builds the container, runs fn and releases the container.
func (o *rootOptions) withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *Container) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newContainer(ctx, cfg, o.containerOpts...)
	if err != nil {
		return err
	}

	runErr := fn(ctx, c)
	closeErr := c.Close(context.WithoutCancel(ctx))

	return errors.Join(runErr, closeErr)
}
