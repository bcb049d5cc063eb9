package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/config"
	"github.com/ShayCichocki/referee/internal/orchestrator"
)

var checkTimeout time.Duration

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured provider answers",
	Long: `Send a tiny generation request to the configured provider and
report whether it answered. Use this to confirm an API key, or that a
local Ollama server is running with the configured model pulled.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source := config.GetAPIKeySource(cfg)
		switch source {
		case config.KeySourceNone:
			printStatus("✗", fmt.Sprintf("No API key: set %s or llm.api_key", config.APIKeyEnvVar(cfg.LLM.Provider)), color.FgRed)
		case config.KeySourceNotRequired:
			printStatus("✓", fmt.Sprintf("Provider %s needs no API key", cfg.LLM.Provider), color.FgGreen)
		default:
			key, _ := config.GetAPIKey(cfg)
			printStatus("✓", fmt.Sprintf("API key %s (from %s)", config.MaskAPIKey(key), source), color.FgGreen)
		}

		backend, err := orchestrator.BackendFromConfig(cfg)
		if err != nil {
			return err
		}
		return checkBackend(cmd.Context(), backend, checkTimeout)
	},
}

func init() {
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 30*time.Second, "How long to wait for an answer")
}
