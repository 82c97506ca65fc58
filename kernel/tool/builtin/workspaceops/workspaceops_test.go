package workspaceops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/barqworks/barqcoder/internal/workspace"
)

func newTool(t *testing.T) *Tool {
	t.Helper()
	registry, err := workspace.Open(filepath.Join(t.TempDir(), workspace.DefaultFile))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return New(registry)
}

func TestAddSwitchList(t *testing.T) {
	tool := newTool(t)
	repoA := t.TempDir()
	repoB := t.TempDir()

	if _, err := tool.Run(context.Background(), map[string]any{"action": "add", "name": "alpha", "path": repoA}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := tool.Run(context.Background(), map[string]any{"action": "add", "name": "beta", "path": repoB}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := tool.Run(context.Background(), map[string]any{"action": "switch", "name": "beta"}); err != nil {
		t.Fatalf("switch: %v", err)
	}

	out, err := tool.Run(context.Background(), map[string]any{"action": "list"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out["active"].(string) != "beta" {
		t.Fatalf("expected beta active, got %v", out["active"])
	}
	if entries := out["workspaces"].([]map[string]any); len(entries) != 2 {
		t.Fatalf("expected 2 workspaces, got %v", entries)
	}
}

func TestInvalidActionRejected(t *testing.T) {
	tool := newTool(t)
	if _, err := tool.Run(context.Background(), map[string]any{"action": "destroy"}); err == nil {
		t.Fatal("invalid action must be rejected")
	}
}
