// Package workspace persists the set of repositories the agent can work
// in and which one is active.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the registry location relative to the state directory.
const DefaultFile = "workspaces.toml"

// Workspace is one registered repository.
type Workspace struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type registryFile struct {
	Active     string      `toml:"active"`
	Workspaces []Workspace `toml:"workspaces"`
}

// Registry is a TOML-backed workspace registry. All methods are safe for
// concurrent use.
type Registry struct {
	path string

	mu     sync.Mutex
	active string
	byName map[string]Workspace
}

// Open loads the registry at path, creating an empty one if the file does
// not exist.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path, byName: map[string]Workspace{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("workspace: read registry: %w", err)
	}
	var file registryFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("workspace: parse registry: %w", err)
	}
	for _, ws := range file.Workspaces {
		r.byName[ws.Name] = ws
	}
	if _, ok := r.byName[file.Active]; ok {
		r.active = file.Active
	}
	return r, nil
}

// Add registers a workspace. The first registered workspace becomes
// active.
func (r *Registry) Add(name, path string) error {
	if name == "" || path == "" {
		return errors.New("workspace: name and path are required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("workspace: resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("workspace: %q: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace: %q is not a directory", abs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("workspace: %q already registered", name)
	}
	r.byName[name] = Workspace{Name: name, Path: abs}
	if r.active == "" {
		r.active = name
	}
	return r.saveLocked()
}

// Remove drops a workspace. Removing the active workspace clears the
// active selection.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; !exists {
		return fmt.Errorf("workspace: %q not registered", name)
	}
	delete(r.byName, name)
	if r.active == name {
		r.active = ""
	}
	return r.saveLocked()
}

// Switch makes a registered workspace the active one.
func (r *Registry) Switch(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; !exists {
		return fmt.Errorf("workspace: %q not registered", name)
	}
	r.active = name
	return r.saveLocked()
}

// List returns all workspaces sorted by name.
func (r *Registry) List() []Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Workspace, 0, len(r.byName))
	for _, ws := range r.byName {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Active returns the active workspace, or false when none is selected.
func (r *Registry) Active() (Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.byName[r.active]
	return ws, ok
}

func (r *Registry) saveLocked() error {
	file := registryFile{Active: r.active}
	for _, ws := range r.byName {
		file.Workspaces = append(file.Workspaces, ws)
	}
	sort.Slice(file.Workspaces, func(i, j int) bool {
		return file.Workspaces[i].Name < file.Workspaces[j].Name
	})

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("workspace: create state dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(r.path), ".workspaces-*")
	if err != nil {
		return fmt.Errorf("workspace: write registry: %w", err)
	}
	defer os.Remove(f.Name())

	if err := toml.NewEncoder(f).Encode(file); err != nil {
		f.Close()
		return fmt.Errorf("workspace: encode registry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("workspace: close registry: %w", err)
	}
	if err := os.Rename(f.Name(), r.path); err != nil {
		return fmt.Errorf("workspace: replace registry: %w", err)
	}
	return nil
}
