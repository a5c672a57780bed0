// Package main provides the CLI entrypoint for smartspar.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-smartspar/internal/config"
	"github.com/teslashibe/go-smartspar/internal/log"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded before any subcommand runs.
	cfg config.Config
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "smartspar",
		Short:             "Real-time boxing guard and punch coach",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/smartspar/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReplayCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		loaded.Log.Level = logLevel
	}
	cfg = loaded

	log.Init(cfg.Log.Level)
	return nil
}
