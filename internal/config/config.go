// Package config handles configuration loading and management for referee.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/referee/pkg/models"
)

// ProjectConfigName is the per-project override file searched upward from the working directory.
const ProjectConfigName = ".referee.yaml"

// Config holds all configuration for referee.
type Config struct {
	LLM      LLMConfig              `mapstructure:"llm"`
	Workflow WorkflowConfig         `mapstructure:"workflow"`
	Stages   map[string]StageConfig `mapstructure:"stages"`
	Prompts  PromptsConfig          `mapstructure:"prompts"`
	Storage  StorageConfig          `mapstructure:"storage"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// LLMConfig selects and tunes the text generation backend.
type LLMConfig struct {
	// Provider is one of anthropic, bedrock, openai, ollama.
	Provider string `mapstructure:"provider"`
	// Model overrides the provider's default model.
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// AWSRegion and AWSProfile are used by the bedrock provider.
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	// RequestsPerSecond paces generation calls. Zero disables pacing.
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig bounds the routing loop.
type WorkflowConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
	// MaxReruns caps reruns per stage. Zero means unlimited.
	MaxReruns int `mapstructure:"max_reruns"`
}

// StageConfig holds per-stage generation settings.
type StageConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// PromptsConfig points at an optional prompt override file.
type PromptsConfig struct {
	OverridesFile string `mapstructure:"overrides_file"`
}

// StorageConfig controls run persistence.
type StorageConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// LoggingConfig controls diagnostics.
type LoggingConfig struct {
	// DebugLog is the path of the debug log file. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
	// Verbosity is 0 (quiet), 1 (stage summaries) or 2 (stage output).
	Verbosity int `mapstructure:"verbosity"`
}

// Stage returns the settings for kind, falling back to the built-in defaults.
func (c *Config) Stage(kind models.StageKind) StageConfig {
	if sc, ok := c.Stages[string(kind)]; ok {
		return sc
	}
	return defaultStages[kind]
}

var defaultStages = map[models.StageKind]StageConfig{
	models.StageSupervisor: {Temperature: 0.3, MaxTokens: 500},
	models.StageLiterature: {Temperature: 0.5, MaxTokens: 800},
	models.StageTechnical:  {Temperature: 0.4, MaxTokens: 800},
	models.StageCritical:   {Temperature: 0.6, MaxTokens: 800},
	models.StageSynthesis:  {Temperature: 0.5, MaxTokens: 1200},
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (REFEREE_PROVIDER, REFEREE_MODEL)
// 2. Project config (.referee.yaml in current directory or parent)
// 3. User config (~/.config/referee/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		// Project config takes precedence.
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("llm.provider", "REFEREE_PROVIDER")
	v.BindEnv("llm.model", "REFEREE_MODEL")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	// Expand ${VAR} references
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = expandEnv(cfg.LLM.BaseURL)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration as YAML to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("llm.requests_per_second", cfg.LLM.RequestsPerSecond)
	v.Set("llm.max_retries", cfg.LLM.MaxRetries)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("workflow.max_iterations", cfg.Workflow.MaxIterations)
	v.Set("workflow.max_reruns", cfg.Workflow.MaxReruns)
	for _, kind := range stageKinds() {
		sc := cfg.Stage(kind)
		v.Set("stages."+string(kind)+".temperature", sc.Temperature)
		v.Set("stages."+string(kind)+".max_tokens", sc.MaxTokens)
	}
	v.Set("prompts.overrides_file", cfg.Prompts.OverridesFile)
	v.Set("storage.enabled", cfg.Storage.Enabled)
	v.Set("storage.driver", cfg.Storage.Driver)
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("logging.debug_log", cfg.Logging.DebugLog)
	v.Set("logging.verbosity", cfg.Logging.Verbosity)

	return v.WriteConfigAs(path)
}

// SetValue updates a single key in the user config file.
func SetValue(key, value string) error {
	return SetValueIn(GetUserConfigPath(), key, value)
}

// SetValueIn updates a single key in the config file at path, creating it if needed.
func SetValueIn(path, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config from %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v.Set(key, value)
	return v.WriteConfigAs(path)
}

// KnownKeys returns every configuration key in sorted order.
func KnownKeys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	for _, k := range KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Lookup returns the display value of key in cfg.
func Lookup(cfg *Config, key string) (string, bool) {
	values := map[string]interface{}{
		"llm.provider":            cfg.LLM.Provider,
		"llm.model":               cfg.LLM.Model,
		"llm.api_key":             MaskAPIKey(cfg.LLM.APIKey),
		"llm.base_url":            cfg.LLM.BaseURL,
		"llm.aws_region":          cfg.LLM.AWSRegion,
		"llm.aws_profile":         cfg.LLM.AWSProfile,
		"llm.requests_per_second": cfg.LLM.RequestsPerSecond,
		"llm.max_retries":         cfg.LLM.MaxRetries,
		"llm.timeout":             cfg.LLM.Timeout,
		"workflow.max_iterations": cfg.Workflow.MaxIterations,
		"workflow.max_reruns":     cfg.Workflow.MaxReruns,
		"prompts.overrides_file":  cfg.Prompts.OverridesFile,
		"storage.enabled":         cfg.Storage.Enabled,
		"storage.driver":          cfg.Storage.Driver,
		"storage.path":            cfg.Storage.Path,
		"logging.debug_log":       cfg.Logging.DebugLog,
		"logging.verbosity":       cfg.Logging.Verbosity,
	}
	for _, kind := range stageKinds() {
		sc := cfg.Stage(kind)
		values["stages."+string(kind)+".temperature"] = sc.Temperature
		values["stages."+string(kind)+".max_tokens"] = sc.MaxTokens
	}
	val, ok := values[key]
	if !ok {
		return "", false
	}
	return fmt.Sprint(val), true
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func stageKinds() []models.StageKind {
	return append([]models.StageKind{models.StageSupervisor}, models.CanonicalOrder...)
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.aws_region", "us-west-2")
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("llm.requests_per_second", 0)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.timeout", "2m")

	// Workflow defaults
	v.SetDefault("workflow.max_iterations", 10)
	v.SetDefault("workflow.max_reruns", 0)

	// Stage defaults
	for kind, sc := range defaultStages {
		v.SetDefault("stages."+string(kind)+".temperature", sc.Temperature)
		v.SetDefault("stages."+string(kind)+".max_tokens", sc.MaxTokens)
	}

	v.SetDefault("prompts.overrides_file", "")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(".referee", "referee.db"))

	// Logging defaults
	v.SetDefault("logging.debug_log", "")
	v.SetDefault("logging.verbosity", 1)
}

// getUserConfigDir returns the XDG config directory for referee.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "referee")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "referee")
	}
	return filepath.Join(home, ".config", "referee")
}

// findProjectConfig searches for .referee.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	stages := make(map[string]StageConfig, len(defaultStages))
	for kind, sc := range defaultStages {
		stages[string(kind)] = sc
	}
	return &Config{
		LLM: LLMConfig{
			Provider:   "anthropic",
			AWSRegion:  "us-west-2",
			MaxRetries: 2,
			Timeout:    2 * time.Minute,
		},
		Workflow: WorkflowConfig{
			MaxIterations: 10,
			MaxReruns:     0,
		},
		Stages: stages,
		Storage: StorageConfig{
			Enabled: true,
			Driver:  "sqlite",
			Path:    filepath.Join(".referee", "referee.db"),
		},
		Logging: LoggingConfig{
			Verbosity: 1,
		},
	}
}
