package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.LLM.Provider)
	}

	if cfg.Workflow.MaxIterations != 10 {
		t.Errorf("expected max iterations 10, got %d", cfg.Workflow.MaxIterations)
	}

	if cfg.Workflow.MaxReruns != 0 {
		t.Errorf("expected unlimited reruns (0), got %d", cfg.Workflow.MaxReruns)
	}

	if cfg.LLM.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", cfg.LLM.Timeout)
	}

	if got := cfg.Stage(models.StageSynthesis); got.MaxTokens != 1200 || got.Temperature != 0.5 {
		t.Errorf("unexpected synthesis settings: %+v", got)
	}

	if !cfg.Storage.Enabled || cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected sqlite storage enabled, got %+v", cfg.Storage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `llm:
  provider: Ollama
  model: llama3.1:8b
  timeout: 30s
workflow:
  max_iterations: 6
  max_reruns: 3
stages:
  critical_reviewer:
    temperature: 0.9
storage:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider normalised to 'ollama', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("expected model 'llama3.1:8b', got %q", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.LLM.Timeout)
	}
	if cfg.Workflow.MaxIterations != 6 {
		t.Errorf("expected max iterations 6, got %d", cfg.Workflow.MaxIterations)
	}
	if cfg.Workflow.MaxReruns != 3 {
		t.Errorf("expected max reruns 3, got %d", cfg.Workflow.MaxReruns)
	}

	crit := cfg.Stage(models.StageCritical)
	if crit.Temperature != 0.9 {
		t.Errorf("expected critical temperature 0.9, got %v", crit.Temperature)
	}
	if crit.MaxTokens != 800 {
		t.Errorf("expected critical max tokens to keep default 800, got %d", crit.MaxTokens)
	}

	if cfg.Storage.Enabled {
		t.Error("expected storage disabled")
	}
	// Unset keys keep defaults.
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected default driver, got %q", cfg.Storage.Driver)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_ProjectConfigAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("REFEREE_MODEL", "gpt-4o")

	userDir := filepath.Join(tmpDir, "xdg", "referee")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	userConfig := "llm:\n  provider: anthropic\nworkflow:\n  max_iterations: 4\n"
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(userConfig), 0644); err != nil {
		t.Fatal(err)
	}

	projectDir := filepath.Join(tmpDir, "project")
	nested := filepath.Join(projectDir, "papers")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	projectConfig := "llm:\n  provider: openai\n"
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(projectConfig), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected project provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.Workflow.MaxIterations != 4 {
		t.Errorf("expected user max iterations 4, got %d", cfg.Workflow.MaxIterations)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected env model 'gpt-4o', got %q", cfg.LLM.Model)
	}
	if !strings.HasSuffix(GetProjectConfigPath(), ProjectConfigName) {
		t.Errorf("unexpected project config path %q", GetProjectConfigPath())
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("no-vars-here")
	if result != "no-vars-here" {
		t.Errorf("expected 'no-vars-here', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	if dir != "/custom/config/referee" {
		t.Errorf("expected '/custom/config/referee', got %q", dir)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.LLM.Provider = "bedrock"
	cfg.LLM.AWSProfile = "research"
	cfg.Workflow.MaxReruns = 5
	cfg.Stages[string(models.StageLiterature)] = StageConfig{Temperature: 0.2, MaxTokens: 300}

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.LLM.Provider != "bedrock" || loaded.LLM.AWSProfile != "research" {
		t.Errorf("llm settings not preserved: %+v", loaded.LLM)
	}
	if loaded.Workflow.MaxReruns != 5 {
		t.Errorf("expected max reruns 5, got %d", loaded.Workflow.MaxReruns)
	}
	if got := loaded.Stage(models.StageLiterature); got.MaxTokens != 300 {
		t.Errorf("expected literature max tokens 300, got %d", got.MaxTokens)
	}
	if loaded.LLM.Timeout != 2*time.Minute {
		t.Errorf("expected timeout 2m, got %v", loaded.LLM.Timeout)
	}
}

func TestSetValueIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := SetValueIn(path, "workflow.max_iterations", "7"); err != nil {
		t.Fatalf("SetValueIn failed: %v", err)
	}
	if err := SetValueIn(path, "LLM.Provider", "ollama"); err != nil {
		t.Fatalf("SetValueIn failed: %v", err)
	}
	if err := SetValueIn(path, "llm.colour", "blue"); err == nil {
		t.Error("expected error for unknown key")
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Workflow.MaxIterations != 7 {
		t.Errorf("expected max iterations 7, got %d", cfg.Workflow.MaxIterations)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.LLM.Provider)
	}
}

func TestKnownKeysAndLookup(t *testing.T) {
	keys := KnownKeys()
	for _, want := range []string{"llm.provider", "workflow.max_reruns", "stages.synthesis.max_tokens", "storage.driver"} {
		if !IsKnownKey(want) {
			t.Errorf("expected %q to be a known key (have %v)", want, keys)
		}
	}

	cfg := Default()
	cfg.LLM.APIKey = "sk-ant-REDACTED"
	if v, ok := Lookup(cfg, "llm.api_key"); !ok || v != "sk-ant-...mnop" {
		t.Errorf("expected masked key, got %q (%v)", v, ok)
	}
	if v, ok := Lookup(cfg, "stages.supervisor.temperature"); !ok || v != "0.3" {
		t.Errorf("expected 0.3, got %q (%v)", v, ok)
	}
	if _, ok := Lookup(cfg, "nope"); ok {
		t.Error("expected unknown key lookup to fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "mainframe" }, "llm.provider"},
		{"zero iterations", func(c *Config) { c.Workflow.MaxIterations = 0 }, "workflow.max_iterations"},
		{"negative reruns", func(c *Config) { c.Workflow.MaxReruns = -1 }, "workflow.max_reruns"},
		{"hot temperature", func(c *Config) {
			c.Stages[string(models.StageCritical)] = StageConfig{Temperature: 2.5, MaxTokens: 10}
		}, "stages.critical_reviewer.temperature"},
		{"zero tokens", func(c *Config) {
			c.Stages[string(models.StageSupervisor)] = StageConfig{Temperature: 0.3}
		}, "stages.supervisor.max_tokens"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"bad verbosity", func(c *Config) { c.Logging.Verbosity = 3 }, "logging.verbosity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Storage.Enabled = false
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err != nil {
		t.Errorf("driver is ignored when storage is disabled: %v", err)
	}
}
