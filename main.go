package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/subtrans/backend/internal/config"
)

type rootOptions struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "subtrans",
		Short:         "Batch subtitle translation with LLM and MT engines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.LoadEnvFile(opts.envFile)
			if err != nil {
				return fmt.Errorf("load env file: %w", err)
			}

			level := opts.logLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			// the server logs JSON, the CLI logs for a terminal
			opts.logger = config.NewLogger(level, cmd.Name() != "serve")
			if loaded {
				opts.logger.Debugw("loaded env file", "path", opts.envFile)
			}

			opts.cfg = config.Load(opts.logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default: .env if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $LOG_LEVEL or info)")

	cmd.AddCommand(newTranslateCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
