package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/agent"
	"github.com/ShayCichocki/referee/internal/config"
)

var (
	initForce       bool
	initWithPrompts bool
	initProvider    string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a referee project",
	Long: `Initialize a directory for use with referee.

This command:
  - Creates the .referee directory (run database and logs)
  - Writes a .referee.yaml project configuration with the defaults
  - Optionally writes the built-in prompts as an editable override file
  - Adds .referee/ to .gitignore when the directory is a git repository

The directory argument is optional and defaults to the current directory.

Examples:
  referee init                      # Initialize current directory
  referee init ./reviews            # Initialize specific directory
  referee init --provider ollama    # Use a local model
  referee init --with-prompts       # Also write .referee/prompts.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir := "."
		if len(args) > 0 {
			targetDir = args[0]
		}
		absPath, err := filepath.Abs(targetDir)
		if err != nil {
			return fmt.Errorf("resolving absolute path: %w", err)
		}

		fmt.Printf("Initializing referee in %s...\n\n", absPath)
		cfg, err := initProject(absPath, initOptions{
			Force:       initForce,
			WithPrompts: initWithPrompts,
			Provider:    initProvider,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\n%s referee initialization complete!\n\n", color.GreenString("✓"))
		fmt.Println("Next steps:")
		if config.GetAPIKeySource(cfg) == config.KeySourceNone {
			fmt.Println("  1. Set your API key:")
			fmt.Printf("     export %s=your-key-here\n", config.APIKeyEnvVar(cfg.LLM.Provider))
			fmt.Println()
		}
		fmt.Println("  2. Check the provider answers:")
		fmt.Println("     referee check")
		fmt.Println()
		fmt.Println("  3. Review the sample abstract:")
		fmt.Println("     referee run --sample")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration")
	initCmd.Flags().BoolVar(&initWithPrompts, "with-prompts", false, "Write the built-in prompts to .referee/prompts.yaml")
	initCmd.Flags().StringVar(&initProvider, "provider", "", "LLM provider to configure (anthropic, bedrock, openai, ollama)")
}

type initOptions struct {
	Force       bool
	WithPrompts bool
	Provider    string
}

// initProject lays out a project in dir and returns the configuration it wrote.
func initProject(dir string, opts initOptions) (*config.Config, error) {
	configFile := filepath.Join(dir, config.ProjectConfigName)
	if _, err := os.Stat(configFile); err == nil && !opts.Force {
		return nil, fmt.Errorf("%s already exists; use --force to overwrite it", configFile)
	}

	cfg := config.Default()
	if opts.Provider != "" {
		cfg.LLM.Provider = strings.ToLower(opts.Provider)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	refereeDir := filepath.Join(dir, ".referee")
	if err := os.MkdirAll(filepath.Join(refereeDir, "logs"), 0755); err != nil {
		return nil, fmt.Errorf("creating .referee directory: %w", err)
	}
	printStatus("✓", "Created .referee directory structure", color.FgGreen)

	if opts.WithPrompts {
		data, err := agent.MarshalPromptOverrides()
		if err != nil {
			return nil, fmt.Errorf("rendering prompt template: %w", err)
		}
		promptsFile := filepath.Join(refereeDir, "prompts.yaml")
		if err := os.WriteFile(promptsFile, data, 0644); err != nil {
			return nil, fmt.Errorf("writing prompt template: %w", err)
		}
		cfg.Prompts.OverridesFile = filepath.Join(".referee", "prompts.yaml")
		printStatus("✓", "Created .referee/prompts.yaml", color.FgGreen)
	}

	if err := config.SaveTo(cfg, configFile); err != nil {
		return nil, fmt.Errorf("writing %s: %w", config.ProjectConfigName, err)
	}
	printStatus("✓", "Created "+config.ProjectConfigName, color.FgGreen)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if err := updateGitignore(dir); err != nil {
			return nil, fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with referee entries", color.FgGreen)
	}

	return cfg, nil
}

// updateGitignore appends the referee entries that .gitignore lacks.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	entries := []string{
		".referee/referee.db*",
		".referee/logs/",
	}

	var missing []string
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# referee\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}
