package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/referee/internal/agent"
	"github.com/ShayCichocki/referee/internal/config"
)

func TestInitProject(t *testing.T) {
	dir := t.TempDir()

	cfg, err := initProject(dir, initOptions{Provider: "ollama"})
	if err != nil {
		t.Fatalf("initProject: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.LLM.Provider)
	}

	if info, err := os.Stat(filepath.Join(dir, ".referee", "logs")); err != nil || !info.IsDir() {
		t.Errorf("expected .referee/logs directory, got %v", err)
	}

	loaded, err := config.LoadFromPath(filepath.Join(dir, config.ProjectConfigName))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.LLM.Provider != "ollama" {
		t.Errorf("saved provider = %q, want ollama", loaded.LLM.Provider)
	}
	if loaded.Workflow.MaxIterations != config.Default().Workflow.MaxIterations {
		t.Errorf("saved max_iterations = %d", loaded.Workflow.MaxIterations)
	}

	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); !os.IsNotExist(err) {
		t.Error(".gitignore should only be touched in git repositories")
	}
}

func TestInitProject_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	if _, err := initProject(dir, initOptions{}); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if _, err := initProject(dir, initOptions{}); err == nil {
		t.Error("expected an error without --force")
	}
	if _, err := initProject(dir, initOptions{Force: true}); err != nil {
		t.Errorf("init with force: %v", err)
	}
}

func TestInitProject_InvalidProvider(t *testing.T) {
	if _, err := initProject(t.TempDir(), initOptions{Provider: "gemini"}); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

func TestInitProject_WithPrompts(t *testing.T) {
	dir := t.TempDir()
	cfg, err := initProject(dir, initOptions{WithPrompts: true})
	if err != nil {
		t.Fatalf("initProject: %v", err)
	}
	if cfg.Prompts.OverridesFile == "" {
		t.Fatal("expected prompts.overrides_file to be set")
	}

	overrides, err := agent.LoadPromptOverrides(filepath.Join(dir, cfg.Prompts.OverridesFile))
	if err != nil {
		t.Fatalf("LoadPromptOverrides: %v", err)
	}
	if _, err := agent.NewTemplateRenderer(overrides); err != nil {
		t.Errorf("written prompts do not compile: %v", err)
	}
}

func TestUpdateGitignore(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("bin/"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := initProject(dir, initOptions{}); err != nil {
		t.Fatalf("initProject: %v", err)
	}
	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "bin/\n") {
		t.Errorf("existing entries should be kept:\n%s", content)
	}
	for _, entry := range []string{".referee/referee.db*", ".referee/logs/"} {
		if n := strings.Count(content, entry); n != 1 {
			t.Errorf("%s appears %d times:\n%s", entry, n, content)
		}
	}
}
