package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the config file path and effective settings",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	state := "not found, using defaults"
	if _, err := os.Stat(configPath); err == nil {
		state = "loaded"
	}
	fmt.Fprintf(out, "# %s (%s)\n\n", configPath, state)

	if err := toml.NewEncoder(out).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
