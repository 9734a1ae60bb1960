package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// Version is injected at build time.
var Version = "dev"

type rootOptions struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "appfunctions",
		Short: "Serve and inspect app functions",
		Long: `appfunctions loads app function metadata documents (*.yaml, *.yml, *.json)
from a catalog directory and exposes them to agents as MCP tools over stdio.

Examples:
  # Serve the catalog over stdio
  appfunctions serve --dir ./functions

  # List functions and their enabled state
  appfunctions list

  # Print the tool schema of a function
  appfunctions schema com.example.notes createNote

  # Check an argument document against a function's parameters
  appfunctions validate com.example.notes createNote args.json`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default ./.env when present)")
	flags.String("dir", "", "catalog directory (APPFUNCTIONS_CATALOG_DIR)")
	flags.String("redis-url", "", "redis URL for enabled-state storage (APPFUNCTIONS_REDIS_URL)")
	flags.String("log-level", "", "log level: debug, info, warn, error (APPFUNCTIONS_LOG_LEVEL)")
	flags.String("log-format", "", "log format: text or json (APPFUNCTIONS_LOG_FORMAT)")

	root.AddCommand(
		newServeCmd(opts),
		newListCmd(opts),
		newSchemaCmd(opts),
		newValidateCmd(opts),
		newStateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// config resolves the configuration for cmd.
func (o *rootOptions) config(cmd *cobra.Command) (Config, error) {
	cfg, err := loadConfig(o.envFile)
	if err != nil {
		return Config{}, err
	}
	cfg.applyFlags(cmd.Flags())
	return cfg, nil
}

// runtime resolves the configuration and builds a runtime for cmd. Logs go
// to stderr.
func (o *rootOptions) runtime(ctx context.Context, cmd *cobra.Command, reg prometheus.Registerer) (*runtime, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return newRuntime(ctx, cfg, log, reg)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "appfunctions %s\n", Version)
		},
	}
}
