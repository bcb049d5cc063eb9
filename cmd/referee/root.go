package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/config"
)

var (
	configPath string
	verbosity  int
)

var rootCmd = &cobra.Command{
	Use:   "referee",
	Short: "Multi-stage research abstract review",
	Long: `Referee reviews a research abstract with four specialist stages
coordinated by a supervisor:

  - Literature reviewer: research context and key concepts
  - Technical analyzer: methodology evaluation
  - Critical reviewer: weaknesses, improvements and rerun requests
  - Synthesis: the integrated final report

The supervisor decides after every stage which one runs next, and
stops when the report is done or the iteration cap is reached. Every
revision of the run is stored so it can be inspected or resumed later.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config merged with .referee.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", -1, "Output detail: 0 quiet, 1 stage summaries, 2 stage output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates configuration, applying the --verbosity flag.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if verbosity >= 0 {
		cfg.Logging.Verbosity = verbosity
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
