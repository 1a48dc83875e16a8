// Package cli builds the cobra commands shared by the thinkgraph binaries:
// flag registration bound to viper keys, config loading, logger setup and
// signal handling.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/app"
	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/logging"
)

// RunFunc is the body of a binary once config and logger are ready. ctx is
// cancelled on SIGINT or SIGTERM.
type RunFunc func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error

// Flag pairs a command-line flag with the config key it overrides.
type Flag struct {
	name, key, usage string
	kind             string // "string", "int" or "bool"
}

var storageFlags = []Flag{
	{"storage-engine", config.KeyStorageEngine, "storage engine: file, sqlite, postgres or redis", "string"},
	{"data-path", config.KeyDataPath, "directory for the file and sqlite engines", "string"},
	{"postgres-dsn", config.KeyPostgresDSN, "connection string for the postgres engine", "string"},
	{"redis-url", config.KeyRedisURL, "redis:// URL for the redis engine", "string"},
	{"library", config.KeyDefaultLibrary, "memory library loaded at startup", "string"},
	{"env", config.KeyEnv, "logger flavour: development or production", "string"},
	{"quiet-reasoning", config.KeyDisableReasoningLogging, "do not draw reasoning steps on stderr", "bool"},
	{"trace", config.KeyEnableTracing, "log every dispatched request span", "bool"},
}

// HTTPFlags are the extra flags of the HTTP binary.
var HTTPFlags = []Flag{
	{"host", config.KeyHost, "interface to listen on", "string"},
	{"port", config.KeyPort, "port to listen on", "int"},
	{"security-mode", config.KeySecurityMode, "development or production (requires an API token)", "string"},
}

// NewCommand returns a root command that loads configuration (flags over
// THINKGRAPH_* environment over thinkgraph.yaml over defaults), builds a
// logger and calls run.
func NewCommand(use, short string, extra []Flag, run RunFunc) *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	flags := append(append([]Flag{}, storageFlags...), extra...)
	for _, f := range flags {
		switch f.kind {
		case "int":
			cmd.Flags().Int(f.name, 0, f.usage)
		case "bool":
			cmd.Flags().Bool(f.name, false, f.usage)
		default:
			cmd.Flags().String(f.name, "", f.usage)
		}
		// Unset flags fall through to env, file and defaults.
		if err := v.BindPFlag(f.key, cmd.Flags().Lookup(f.name)); err != nil {
			panic(fmt.Sprintf("cli: bind flag %s: %v", f.name, err))
		}
	}
	return cmd
}

// Execute runs cmd and prints any error to stderr. It returns the process
// exit code.
func Execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
