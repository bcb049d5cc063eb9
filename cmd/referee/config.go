package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify referee configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/referee/config.yaml
Project-specific overrides can be placed in .referee.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 2 {
			return setConfigKey(out, args[0], args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if len(args) == 1 {
			return displayConfigKey(out, cfg, args[0])
		}
		displayAllConfig(out, cfg)
		return nil
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range config.KnownKeys() {
		if value, ok := config.Lookup(cfg, key); ok {
			fmt.Fprintf(w, "%s: %s\n", key, value)
		}
	}
	if path := config.GetProjectConfigPath(); path != "" {
		fmt.Fprintf(w, "\n# project overrides: %s\n", path)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(w io.Writer, cfg *config.Config, key string) error {
	value, ok := config.Lookup(cfg, strings.ToLower(key))
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	fmt.Fprintln(w, value)
	return nil
}

// setConfigKey sets a configuration value in the user config file,
// or in the file named by --config.
func setConfigKey(w io.Writer, key, value string) error {
	path := configPath
	if path == "" {
		path = config.GetUserConfigPath()
	}
	if err := config.SetValueIn(path, key, value); err != nil {
		return err
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}
