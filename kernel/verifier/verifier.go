// Package verifier gates applied edits: it compiles, tests, scores, and
// statically inspects the result, and decides whether the edit must be
// rolled back.
package verifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/barqworks/barqcoder/kernel/execenv"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/checks"
)

const testTimeout = 60 * time.Second

// CompileChecker runs the compiler. The checks tool satisfies it.
type CompileChecker interface {
	Check(ctx context.Context, dir string) (*checks.Report, error)
}

// GraphDeps resolves a symbol to the symbols it depends on. The retrieval
// store satisfies it.
type GraphDeps interface {
	GraphDeps(symbol string) []string
}

// Edit describes the change under verification.
type Edit struct {
	// Workspace is the repository root the edit was applied in.
	Workspace string
	// File is the edited path, for reporting.
	File string
	// Before and After are the file contents around the edit.
	Before string
	After  string
}

// Report is the outcome of one verification run.
//
// ShouldRevert is derived from the compile and test outcomes only. The
// semantic score and warnings inform the caller but never force a revert;
// unsafe constructs escalate by failing the compile outcome instead.
type Report struct {
	CompilePass   bool     `json:"compile_pass"`
	TestPass      bool     `json:"test_pass"`
	SemanticScore float64  `json:"semantic_score"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	ShouldRevert  bool     `json:"should_revert"`
}

// Config configures a Verifier.
type Config struct {
	Checker CompileChecker
	// Runner executes the test command. Defaults to the host runner.
	Runner execenv.CommandRunner
	// Deps enables cycle detection. Nil skips it.
	Deps GraphDeps
}

// Verifier runs the verification pipeline. Verifications of the same
// workspace are serialized; distinct workspaces proceed in parallel.
type Verifier struct {
	cfg Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg Config) (*Verifier, error) {
	if cfg.Checker == nil {
		return nil, fmt.Errorf("verifier: compile checker is required")
	}
	if cfg.Runner == nil {
		cfg.Runner = execenv.NewHostRunner(execenv.HostRunnerConfig{})
	}
	return &Verifier{cfg: cfg, locks: map[string]*sync.Mutex{}}, nil
}

func (v *Verifier) workspaceLock(workspace string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	lock, ok := v.locks[workspace]
	if !ok {
		lock = &sync.Mutex{}
		v.locks[workspace] = lock
	}
	return lock
}

// VerifyEdit runs the full pipeline for one applied edit.
func (v *Verifier) VerifyEdit(ctx context.Context, edit Edit) (*Report, error) {
	lock := v.workspaceLock(edit.Workspace)
	lock.Lock()
	defer lock.Unlock()

	report := &Report{Errors: []string{}, Warnings: []string{}}

	compile, err := v.cfg.Checker.Check(ctx, edit.Workspace)
	if err != nil {
		return nil, fmt.Errorf("verifier: compile check: %w", err)
	}
	report.CompilePass = compile.Success
	for _, diag := range compile.Errors {
		report.Errors = append(report.Errors, diag.Message)
	}
	for _, diag := range compile.Warnings {
		report.Warnings = append(report.Warnings, diag.Message)
	}

	if report.CompilePass {
		pass, failures, err := v.runTests(ctx, edit.Workspace)
		if err != nil {
			return nil, err
		}
		report.TestPass = pass
		report.Errors = append(report.Errors, failures...)
	}

	report.SemanticScore = semanticScore(edit.Before, edit.After)

	static := runStatic(edit, v.cfg.Deps)
	report.Warnings = append(report.Warnings, static.warnings...)
	if len(static.unsafeFindings) > 0 {
		// Unsafe constructs are treated as compile failures so the
		// revert decision catches them.
		report.CompilePass = false
		report.Errors = append(report.Errors, static.unsafeFindings...)
	}

	report.ShouldRevert = !report.CompilePass || !report.TestPass
	return report, nil
}

// runTests executes the whole suite even past the first failure and
// reports every failing test.
func (v *Verifier) runTests(ctx context.Context, workspace string) (bool, []string, error) {
	result, err := v.cfg.Runner.Run(ctx, execenv.CommandRequest{
		Command: "cargo test --no-fail-fast",
		Dir:     workspace,
		Timeout: testTimeout,
	})
	if err != nil {
		return false, nil, fmt.Errorf("verifier: run tests: %w", err)
	}
	if result.TimedOut {
		return false, []string{"test run timed out"}, nil
	}
	failures := parseTestFailures(result.Stdout + "\n" + result.Stderr)
	return result.ExitCode == 0, failures, nil
}

// parseTestFailures pulls the names of failed tests out of cargo's
// human-readable output.
func parseTestFailures(output string) []string {
	var failures []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "test ") && strings.HasSuffix(line, "FAILED") {
			name := strings.TrimSuffix(strings.TrimPrefix(line, "test "), "... FAILED")
			failures = append(failures, "test failed: "+strings.TrimSpace(name))
		}
	}
	return failures
}

// semanticScore is 1.0 only for identical content, and strictly below 1.0
// for any change, scaled by how much of the file changed.
func semanticScore(before, after string) float64 {
	if before == after {
		return 1.0
	}
	longest := len(before)
	if len(after) > longest {
		longest = len(after)
	}
	if longest == 0 {
		return 1.0
	}
	dmp := diffmatchpatch.New()
	distance := dmp.DiffLevenshtein(dmp.DiffMain(before, after, false))
	score := 1.0 - float64(distance)/float64(longest)
	if score < 0 {
		score = 0
	}
	// A non-identical edit never scores a perfect 1.0.
	if score >= 1.0 {
		score = 0.99
	}
	return score
}
