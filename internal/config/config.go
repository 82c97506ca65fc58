// Package config loads the TOML configuration controlling the model
// provider, the agent loop, and on-disk state locations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// StateDirName is the per-repository state directory.
	StateDirName = ".barqcoder"
	// FileName is the config file looked up inside the state directory.
	FileName = "config.toml"
)

// Model configures the LLM provider.
type Model struct {
	// Provider is "ollama" or "anthropic". Empty means ollama.
	Provider string `toml:"provider"`
	Name     string `toml:"name"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
	// TokenLimit caps the model's output per turn.
	TokenLimit int `toml:"token_limit"`
}

// Agent configures the tool-calling loop.
type Agent struct {
	// MaxIterations bounds model turns per task.
	MaxIterations int `toml:"max_iterations"`
}

// Retrieval configures the semantic index.
type Retrieval struct {
	// EmbedModel is the Ollama embedding model.
	EmbedModel string `toml:"embed_model"`
}

// Config is the full application configuration.
type Config struct {
	Model     Model     `toml:"model"`
	Agent     Agent     `toml:"agent"`
	Retrieval Retrieval `toml:"retrieval"`

	// StateDir is where sessions, goals, the workspace registry, and the
	// vector index live. Not read from the file; derived from the load
	// path.
	StateDir string `toml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Model: Model{
			Provider:   "ollama",
			Name:       "qwen2.5-coder",
			BaseURL:    "http://localhost:11434",
			TokenLimit: 4096,
		},
		Agent:     Agent{MaxIterations: 5},
		Retrieval: Retrieval{EmbedModel: "nomic-embed-text"},
	}
}

// Load reads the config from dir's state directory, falling back to
// defaults when the file is absent. Environment variables override the
// API key so it never has to live in the file.
func Load(dir string) (*Config, error) {
	cfg := Default()
	cfg.StateDir = filepath.Join(dir, StateDirName)

	path := filepath.Join(cfg.StateDir, FileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = key
	}
}

func (c *Config) validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("config: max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Model.TokenLimit <= 0 {
		return fmt.Errorf("config: token_limit must be positive, got %d", c.Model.TokenLimit)
	}
	switch c.Model.Provider {
	case "", "ollama", "anthropic":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Model.Provider)
	}
	return nil
}

// SessionsDir is where session logs are stored.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.StateDir, "sessions")
}

// GoalsDir is where goal files are stored.
func (c *Config) GoalsDir() string {
	return filepath.Join(c.StateDir, "goals")
}

// IndexDir is where the vector index persists.
func (c *Config) IndexDir() string {
	return filepath.Join(c.StateDir, "index")
}

// WorkspacesFile is the workspace registry path.
func (c *Config) WorkspacesFile() string {
	return filepath.Join(c.StateDir, "workspaces.toml")
}
