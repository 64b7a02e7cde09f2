package cmd

import (
	"fmt"
	"os"

	"github.com/newhook/cilog/internal/config"
	"github.com/spf13/cobra"
)

var flagConfigForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := getConfig().GenerateDocumented()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&flagConfigForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); err == nil && !flagConfigForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := getConfig().Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
