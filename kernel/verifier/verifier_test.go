package verifier

import (
	"context"
	"strings"
	"testing"

	"github.com/barqworks/barqcoder/kernel/execenv"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/checks"
)

type stubChecker struct {
	report checks.Report
}

func (s *stubChecker) Check(ctx context.Context, dir string) (*checks.Report, error) {
	report := s.report
	return &report, nil
}

type stubRunner struct {
	result execenv.CommandResult
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, req execenv.CommandRequest) (execenv.CommandResult, error) {
	s.calls++
	return s.result, nil
}

type stubGraph struct {
	deps map[string][]string
}

func (s *stubGraph) GraphDeps(symbol string) []string {
	return s.deps[symbol]
}

func newVerifier(t *testing.T, checker CompileChecker, runner execenv.CommandRunner, deps GraphDeps) *Verifier {
	t.Helper()
	v, err := New(Config{Checker: checker, Runner: runner, Deps: deps})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return v
}

func TestCleanEditPasses(t *testing.T) {
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{ExitCode: 0}},
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{
		Workspace: "/repos/demo",
		File:      "src/lib.rs",
		Before:    "pub fn f() {}\n",
		After:     "pub fn f() -> u32 { 1 }\n",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.CompilePass || !report.TestPass {
		t.Fatalf("clean edit should pass both gates: %+v", report)
	}
	if report.ShouldRevert {
		t.Fatal("clean edit must not revert")
	}
	if report.SemanticScore >= 1.0 {
		t.Fatalf("changed content must score below 1.0, got %v", report.SemanticScore)
	}
}

func TestIdenticalContentScoresOne(t *testing.T) {
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{ExitCode: 0}},
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{
		Workspace: "/repos/demo",
		Before:    "same\n",
		After:     "same\n",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.SemanticScore != 1.0 {
		t.Fatalf("identical content must score exactly 1.0, got %v", report.SemanticScore)
	}
}

func TestCompileFailureRevertsAndSkipsTests(t *testing.T) {
	runner := &stubRunner{result: execenv.CommandResult{ExitCode: 0}}
	v := newVerifier(t,
		&stubChecker{report: checks.Report{
			Success: false,
			Errors:  []checks.Diagnostic{{Level: "error", Message: "expected `;`"}},
		}},
		runner,
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{Workspace: "/repos/demo", After: "fn f(\n"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.CompilePass || report.TestPass {
		t.Fatalf("compile failure should fail both gates: %+v", report)
	}
	if !report.ShouldRevert {
		t.Fatal("compile failure must revert")
	}
	if runner.calls != 0 {
		t.Fatal("tests must not run when the compile fails")
	}
}

func TestTestFailureRevertsWithNames(t *testing.T) {
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{
			ExitCode: 101,
			Stdout:   "test parser::tests::roundtrip ... FAILED\ntest parser::tests::empty ... ok\n",
		}},
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{Workspace: "/repos/demo", After: "ok\n"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.TestPass || !report.ShouldRevert {
		t.Fatalf("failed tests must revert: %+v", report)
	}
	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, "parser::tests::roundtrip") {
			found = true
		}
	}
	if !found {
		t.Fatalf("failed test name missing from errors: %v", report.Errors)
	}
}

func TestUnsafeConstructEscalates(t *testing.T) {
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{ExitCode: 0}},
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{
		Workspace: "/repos/demo",
		File:      "src/lib.rs",
		After:     "pub fn f(p: *const u8) { unsafe { std::ptr::read(p); } }\n",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.CompilePass {
		t.Fatal("unsafe construct must fail the compile outcome")
	}
	if !report.ShouldRevert {
		t.Fatal("unsafe construct must force a revert")
	}
}

func TestWarningsAreInformational(t *testing.T) {
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{ExitCode: 0}},
		nil,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{
		Workspace: "/repos/demo",
		File:      "src/auth.rs",
		After:     "let api_key = \"sk-12345\";\n#[allow(dead_code)]\nfn unused() {}\n",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(report.Warnings) < 2 {
		t.Fatalf("expected credential and dead-code warnings, got %v", report.Warnings)
	}
	if report.ShouldRevert {
		t.Fatal("warnings alone must never revert")
	}
}

func TestCycleDetection(t *testing.T) {
	graph := &stubGraph{deps: map[string][]string{
		"alpha": {"beta"},
		"beta":  {"gamma"},
		"gamma": {"alpha"},
	}}
	v := newVerifier(t,
		&stubChecker{report: checks.Report{Success: true}},
		&stubRunner{result: execenv.CommandResult{ExitCode: 0}},
		graph,
	)
	report, err := v.VerifyEdit(context.Background(), Edit{
		Workspace: "/repos/demo",
		File:      "src/a.rs",
		After:     "pub fn alpha() { beta(); }\n",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "dependency cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("cycle warning missing: %v", report.Warnings)
	}
	if report.ShouldRevert {
		t.Fatal("cycle warning must stay informational")
	}
}
