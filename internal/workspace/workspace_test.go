package workspace

import (
	"path/filepath"
	"testing"
)

func TestAddSwitchRemove(t *testing.T) {
	dir := t.TempDir()
	registry, err := Open(filepath.Join(dir, "state", DefaultFile))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	repoA := t.TempDir()
	repoB := t.TempDir()
	if err := registry.Add("alpha", repoA); err != nil {
		t.Fatalf("add alpha: %v", err)
	}
	if err := registry.Add("beta", repoB); err != nil {
		t.Fatalf("add beta: %v", err)
	}
	if err := registry.Add("alpha", repoB); err == nil {
		t.Fatal("duplicate name must be rejected")
	}

	active, ok := registry.Active()
	if !ok || active.Name != "alpha" {
		t.Fatalf("first workspace should be active, got %+v ok=%v", active, ok)
	}

	if err := registry.Switch("beta"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if err := registry.Switch("gamma"); err == nil {
		t.Fatal("switching to unknown workspace must fail")
	}

	if err := registry.Remove("beta"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := registry.Active(); ok {
		t.Fatal("removing the active workspace should clear the selection")
	}
	if got := registry.List(); len(got) != 1 || got[0].Name != "alpha" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := t.TempDir()
	if err := first.Add("alpha", repo); err != nil {
		t.Fatalf("add: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	active, ok := second.Active()
	if !ok || active.Name != "alpha" {
		t.Fatalf("active not persisted, got %+v ok=%v", active, ok)
	}
	if len(second.List()) != 1 {
		t.Fatalf("workspaces not persisted: %v", second.List())
	}
}

func TestAddRejectsMissingDir(t *testing.T) {
	registry, err := Open(filepath.Join(t.TempDir(), DefaultFile))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := registry.Add("ghost", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("nonexistent path must be rejected")
	}
}
