package shell

import (
	"context"
	"fmt"
	"time"

	"github.com/barqworks/barqcoder/kernel/execenv"
	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/policy"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/internal/argparse"
)

const (
	// ToolName is the shell execution tool dispatch key.
	ToolName = "shell_exec"

	defaultTimeout = 30 * time.Second
)

// Config configures the shell execution tool.
type Config struct {
	// WorkingDir is the default working directory when the model omits one.
	WorkingDir string
	// Guards run before any subprocess is spawned. Nil installs the
	// default denylist.
	Guards []policy.CommandGuard
	// Runner executes the command. Nil installs the host runner with the
	// default timeout ceiling.
	Runner execenv.CommandRunner
}

// Tool runs shell commands in the workspace with denylist screening and a
// server-clamped timeout.
type Tool struct {
	cfg Config
}

func New(cfg Config) *Tool {
	if len(cfg.Guards) == 0 {
		cfg.Guards = []policy.CommandGuard{policy.NewDenylist(nil)}
	}
	if cfg.Runner == nil {
		cfg.Runner = execenv.NewHostRunner(execenv.HostRunnerConfig{})
	}
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Run a shell command in the workspace and return stdout/stderr/exit_code."
}

func (t *Tool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command":      map[string]any{"type": "string", "description": "shell command"},
				"working_dir":  map[string]any{"type": "string", "description": "working directory, defaults to the workspace root"},
				"timeout_secs": map[string]any{"type": "integer", "description": "timeout in seconds, clamped to the server ceiling"},
			},
			"required": []string{"command"},
		},
	}
}

func (t *Tool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, err := argparse.String(args, "command", true)
	if err != nil {
		return nil, err
	}
	workingDir, err := argparse.String(args, "working_dir", false)
	if err != nil {
		return nil, err
	}
	if workingDir == "" {
		workingDir = t.cfg.WorkingDir
	}
	timeoutSecs, err := argparse.Int(args, "timeout_secs", 0)
	if err != nil {
		return nil, err
	}

	if decision := policy.Chain(t.cfg.Guards, command); !decision.Allowed() {
		return nil, fmt.Errorf("tool: %s rejected: %s", ToolName, decision.Reason)
	}

	timeout := defaultTimeout
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}
	result, err := t.cfg.Runner.Run(ctx, execenv.CommandRequest{
		Command: command,
		Dir:     workingDir,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("tool: %s failed: %w", ToolName, err)
	}
	return map[string]any{
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
		"timed_out": result.TimedOut,
	}, nil
}
