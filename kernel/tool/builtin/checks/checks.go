// Package checks runs the project's compiler as a tool the agent can call
// between edits.
package checks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/barqworks/barqcoder/kernel/execenv"
	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/internal/argparse"
)

const (
	// ToolName is the compile-check tool dispatch key.
	ToolName = "cargo_check"

	// checkTimeout bounds a single compiler invocation. A hung build is
	// reported as a failed check rather than blocking the loop.
	checkTimeout = 30 * time.Second
)

// Diagnostic is one compiler message, flattened from cargo's JSON-lines
// output.
type Diagnostic struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Report is the parsed outcome of one check run.
type Report struct {
	Success  bool         `json:"success"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	TimedOut bool         `json:"timed_out"`
}

// Config configures the check tool.
type Config struct {
	// WorkingDir is the crate root the check runs in.
	WorkingDir string
	// Runner executes the compiler. Defaults to the host runner.
	Runner execenv.CommandRunner
}

type Tool struct {
	cfg Config
}

func New(cfg Config) *Tool {
	if cfg.Runner == nil {
		cfg.Runner = execenv.NewHostRunner(execenv.HostRunnerConfig{})
	}
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Type-check the workspace with cargo check and report diagnostics."
}

func (t *Tool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"working_dir": map[string]any{"type": "string", "description": "crate root, defaults to the workspace root"},
			},
		},
	}
}

func (t *Tool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	dir, err := argparse.String(args, "working_dir", false)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = t.cfg.WorkingDir
	}
	report, err := t.Check(ctx, dir)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("tool: %s marshal report: %w", ToolName, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("tool: %s unmarshal report: %w", ToolName, err)
	}
	return out, nil
}

// Check runs the compiler once and parses its machine-readable output. This
// is the entry point shared with the verification gate.
func (t *Tool) Check(ctx context.Context, dir string) (*Report, error) {
	result, err := t.cfg.Runner.Run(ctx, execenv.CommandRequest{
		Command: "cargo check --message-format=json",
		Dir:     dir,
		Timeout: checkTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("tool: %s run: %w", ToolName, err)
	}
	report := parseOutput(result.Stdout)
	report.TimedOut = result.TimedOut
	report.Success = result.ExitCode == 0 && !result.TimedOut && len(report.Errors) == 0
	return report, nil
}

// cargoMessage mirrors the subset of cargo's JSON-lines format we read.
type cargoMessage struct {
	Reason  string `json:"reason"`
	Message struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Spans   []struct {
			FileName  string `json:"file_name"`
			LineStart int    `json:"line_start"`
			IsPrimary bool   `json:"is_primary"`
		} `json:"spans"`
	} `json:"message"`
}

func parseOutput(stdout string) *Report {
	report := &Report{Errors: []Diagnostic{}, Warnings: []Diagnostic{}}
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var msg cargoMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Reason != "compiler-message" {
			continue
		}
		diag := Diagnostic{Level: msg.Message.Level, Message: msg.Message.Message}
		for _, span := range msg.Message.Spans {
			if span.IsPrimary {
				diag.File = span.FileName
				diag.Line = span.LineStart
				break
			}
		}
		switch msg.Message.Level {
		case "error":
			report.Errors = append(report.Errors, diag)
		case "warning":
			report.Warnings = append(report.Warnings, diag)
		}
	}
	return report
}
