package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newhook/cilog/internal/config"
	"github.com/newhook/cilog/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// rootCtx is cancelled on SIGINT/SIGTERM
	rootCtx    context.Context
	rootCancel context.CancelFunc

	flagConfig string

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cilog",
	Short: "Reconstruct the structure of CI job logs",
	Long: `cilog parses Travis CI job logs into a tree of sections, commands and
timers, summarises test failures, and keeps fetched logs in a local cache.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		path := flagConfig
		if path == "" {
			path = config.DefaultPath()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logging.Init(cfg.Log.GetPath(), cfg.Log.GetLevel()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		logging.Debug("starting", "command", cmd.CommandPath(), "config", path)
		return nil
	},
}

// Execute runs the root command, then cancels the root context and closes
// the log, whether or not the command failed.
func Execute() error {
	err := rootCmd.Execute()
	if rootCancel != nil {
		rootCancel()
	}
	logging.Close()
	return err
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
func GetContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// getConfig returns the loaded configuration, or defaults when a command
// runs without the root pre-run (tests).
func getConfig() *config.Config {
	if cfg == nil {
		return &config.Config{}
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: "+config.DefaultPath()+")")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}
