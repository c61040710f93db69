package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IntuitiveResearch/PowerBI-Demo/internal/config"
)

var (
	configOutput string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the starkpi configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file populated with the defaults",
	Long: `Write config.toml with every setting at its default value.

Without -o the file is written next to the executable, which is where
serve and report look for it.

Example:
  starkpi config init
  starkpi config init -o ./config.toml --force`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "",
		"output path (default: config.toml next to the executable)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false,
		"overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configOutput
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cmd.Printf("wrote %s\n", path)
	return nil
}
