package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsWhenFileAbsent(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Agent.MaxIterations != 5 {
		t.Fatalf("default max_iterations should be 5, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Model.TokenLimit != 4096 {
		t.Fatalf("default token_limit should be 4096, got %d", cfg.Model.TokenLimit)
	}
	if cfg.Model.Provider != "ollama" {
		t.Fatalf("default provider should be ollama, got %q", cfg.Model.Provider)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "[model]\nprovider = \"anthropic\"\nname = \"claude-sonnet-4-5\"\n\n[agent]\nmax_iterations = 8\n"
	if err := os.WriteFile(filepath.Join(stateDir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Provider != "anthropic" || cfg.Agent.MaxIterations != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.Model.TokenLimit != 4096 {
		t.Fatalf("token_limit default lost: %d", cfg.Model.TokenLimit)
	}
}

func TestInvalidProviderRejected(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, FileName), []byte("[model]\nprovider = \"openai\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("unknown provider must be rejected")
	}
}

func TestStatePaths(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Base(cfg.SessionsDir()) != "sessions" ||
		filepath.Base(cfg.GoalsDir()) != "goals" ||
		filepath.Base(cfg.WorkspacesFile()) != "workspaces.toml" {
		t.Fatalf("state paths wrong: %s %s %s", cfg.SessionsDir(), cfg.GoalsDir(), cfg.WorkspacesFile())
	}
}
