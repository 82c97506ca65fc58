package agents

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"testing"

	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool"
	"github.com/barqworks/barqcoder/kernel/verifier"
)

// queueLLM answers each call with the next queued text.
type queueLLM struct {
	responses []string
	calls     int
}

func (q *queueLLM) Name() string { return "queue" }

func (q *queueLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if q.calls >= len(q.responses) {
			yield(nil, fmt.Errorf("queue llm exhausted after %d calls", q.calls))
			return
		}
		text := q.responses[q.calls]
		q.calls++
		yield(&model.Response{Final: &model.AgentResponse{FinalAnswer: &text}}, nil)
	}
}

func TestPlannerNumberedList(t *testing.T) {
	planner := NewPlanner()
	steps := planner.Plan("1. add the field\n2. update the parser\n3. extend the tests")
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Description != "add the field" || steps[2].Description != "extend the tests" {
		t.Fatalf("descriptions not extracted: %+v", steps)
	}
	for i, step := range steps {
		if step.ID != strconv.Itoa(i+1) || step.Status != StatusPending {
			t.Fatalf("step %d not initialized: %+v", i, step)
		}
	}
}

func TestPlannerClauseSplit(t *testing.T) {
	planner := NewPlanner()
	steps := planner.Plan("rename the struct; fix the callers")
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %+v", steps)
	}
}

func TestPlannerFallbackIsDeterministic(t *testing.T) {
	planner := NewPlanner()
	first := planner.Plan("make it faster")
	second := planner.Plan("make it faster")
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("fallback should produce 3 steps, got %d/%d", len(first), len(second))
	}
	for i := range first {
		if first[i].Description != second[i].Description {
			t.Fatal("plan must be deterministic for the same goal")
		}
	}
}

func TestParseReviewStrictJSON(t *testing.T) {
	review := parseReview(`{"approved": true, "feedback": "clean change"}`)
	if !review.Approved || review.Feedback != "clean change" {
		t.Fatalf("strict JSON not honored: %+v", review)
	}
}

func TestParseReviewKeywordFallback(t *testing.T) {
	review := parseReview("Looks good to me, approved.")
	if !review.Approved {
		t.Fatalf("approval keyword should pass: %+v", review)
	}
}

func TestParseReviewUnparseableRejects(t *testing.T) {
	review := parseReview("the weather is nice")
	if review.Approved {
		t.Fatal("unparseable verdict must reject")
	}
	if review.Feedback == "" {
		t.Fatal("rejection must carry the parse failure as feedback")
	}
}

func TestPipelineContinuesPastRejectedStep(t *testing.T) {
	llm := &queueLLM{responses: []string{
		// step 1: coder, tester, reviewer
		"changed src/a.rs",
		"tests for a pass",
		`{"approved": true, "feedback": "fine"}`,
		// step 2: rejected by the reviewer
		"changed src/b.rs",
		"tests for b pass",
		`{"approved": false, "feedback": "wrong file touched"}`,
		// step 3: still runs
		"changed src/c.rs",
		"tests for c pass",
		`{"approved": true, "feedback": "fine"}`,
	}}
	var observed []StepStatus
	coordinator := NewCoordinator(llm, func(step PlanStep) {
		observed = append(observed, step.Status)
	})

	result, err := coordinator.Run(context.Background(), "1. first\n2. second\n3. third")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(result.Steps))
	}
	if result.Steps[0].Status != StatusDone ||
		result.Steps[1].Status != StatusFailed ||
		result.Steps[2].Status != StatusDone {
		t.Fatalf("statuses wrong: %v %v %v",
			result.Steps[0].Status, result.Steps[1].Status, result.Steps[2].Status)
	}
	if result.Completed != 2 || result.Rejected != 1 {
		t.Fatalf("counts wrong: completed=%d rejected=%d", result.Completed, result.Rejected)
	}
	if result.Steps[1].Feedback != "wrong file touched" {
		t.Fatalf("rejection feedback lost: %q", result.Steps[1].Feedback)
	}
	if len(observed) != 6 {
		t.Fatalf("observer should see each step twice, saw %d updates", len(observed))
	}
}

func TestWorkerErrorIsolatedToStep(t *testing.T) {
	// Only enough responses for step 1; step 2's coder call errors.
	llm := &queueLLM{responses: []string{
		"changed src/a.rs",
		"tests pass",
		`{"approved": true, "feedback": "fine"}`,
	}}
	coordinator := NewCoordinator(llm, nil)

	result, err := coordinator.Run(context.Background(), "1. first\n2. second")
	if err != nil {
		t.Fatalf("pipeline must not abort on a worker error: %v", err)
	}
	if result.Steps[0].Status != StatusDone {
		t.Fatalf("step 1 should succeed: %+v", result.Steps[0])
	}
	if result.Steps[1].Status != StatusFailed || result.Steps[1].Feedback == "" {
		t.Fatalf("step 2 should fail with the error recorded: %+v", result.Steps[1])
	}
}

func TestGoalFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	result := &PipelineResult{
		Goal: "speed up parsing",
		Steps: []PlanStep{
			{ID: "1", Description: "profile the parser", Status: StatusDone},
			{ID: "2", Description: "cache token lookahead", Status: StatusFailed},
		},
	}
	goal := FromResult("parser-speed", result)
	if err := SaveGoal(dir, goal); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadGoal(dir, "parser-speed")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Goal != "speed up parsing" || len(loaded.Phases) != 1 {
		t.Fatalf("goal content lost: %+v", loaded)
	}
	done, total := loaded.Progress()
	if done != 1 || total != 2 {
		t.Fatalf("progress wrong: %d/%d", done, total)
	}

	names, err := ListGoals(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "parser-speed" {
		t.Fatalf("unexpected goal listing %v", names)
	}
}

// turnLLM serves scripted structured turns, so a worker can exercise its
// own tool-calling loop.
type turnLLM struct {
	turns []*model.AgentResponse
	calls int
}

func (l *turnLLM) Name() string { return "turns" }

func (l *turnLLM) Generate(ctx context.Context, req *model.Request) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if l.calls >= len(l.turns) {
			yield(nil, fmt.Errorf("turn llm exhausted after %d calls", l.calls))
			return
		}
		final := l.turns[l.calls]
		l.calls++
		yield(&model.Response{Final: final}, nil)
	}
}

type markTool struct {
	calls int
}

func (m *markTool) Name() string        { return "touch_marker" }
func (m *markTool) Description() string { return "records that it was called" }
func (m *markTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{Name: "touch_marker", Description: "records that it was called"}
}
func (m *markTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	m.calls++
	return map[string]any{"ok": true}, nil
}

func TestWorkerRunsToolLoop(t *testing.T) {
	answer := "added the field"
	llm := &turnLLM{turns: []*model.AgentResponse{
		{ToolCalls: []model.ToolCall{{ID: "1", Name: "touch_marker", Arguments: map[string]any{}}}},
		{FinalAnswer: &answer},
	}}
	marker := &markTool{}
	registry, err := tool.NewRegistry(marker)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	coder := &Coder{llm: llm, tools: registry}
	out, err := coder.Implement(context.Background(), PlanStep{ID: "1", Description: "add the field"}, "extend the parser")
	if err != nil {
		t.Fatalf("implement: %v", err)
	}
	if out != answer {
		t.Fatalf("expected final answer from the loop, got %q", out)
	}
	if marker.calls != 1 {
		t.Fatalf("tool should run once, ran %d times", marker.calls)
	}
}

func TestWorkerWithoutToolsUsesSingleExchange(t *testing.T) {
	llm := &queueLLM{responses: []string{"done in one pass"}}
	coder := NewCoder(llm)
	out, err := coder.Implement(context.Background(), PlanStep{ID: "1", Description: "tidy imports"}, "cleanup")
	if err != nil {
		t.Fatalf("implement: %v", err)
	}
	if out != "done in one pass" {
		t.Fatalf("unexpected output %q", out)
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", llm.calls)
	}
}

func TestParseReviewIgnoresUnrelatedJSON(t *testing.T) {
	review := parseReview(`Looks good to me {"note": 1}`)
	if !review.Approved {
		t.Fatalf("embedded object without a verdict must not override the keyword scan: %+v", review)
	}
}

type stubGate struct {
	report verifier.Report
	calls  int
}

func (s *stubGate) VerifyEdit(ctx context.Context, edit verifier.Edit) (*verifier.Report, error) {
	s.calls++
	r := s.report
	return &r, nil
}

func TestGateDemotesApprovedStep(t *testing.T) {
	llm := &queueLLM{responses: []string{
		"changed src/parser.rs",
		"tests pass",
		`{"approved": true, "feedback": "fine"}`,
		"changed src/lex.rs",
		"tests pass",
		`{"approved": true, "feedback": "fine"}`,
	}}
	gate := &stubGate{report: verifier.Report{
		CompilePass:  false,
		ShouldRevert: true,
		Errors:       []string{"expected `;`"},
	}}
	coordinator := NewCoordinator(llm, nil)
	coordinator.UseGate(gate, "/repos/demo")

	result, err := coordinator.Run(context.Background(), "fix the parser; fix the lexer")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, step := range result.Steps {
		if step.Status != StatusFailed || step.Approved {
			t.Fatalf("gated step must be demoted: %+v", step)
		}
		if !strings.Contains(step.Feedback, "expected `;`") {
			t.Fatalf("gate errors missing from feedback: %q", step.Feedback)
		}
	}
	if gate.calls != 2 {
		t.Fatalf("gate should run once per approved step, ran %d times", gate.calls)
	}
}

func TestGatePassesCleanStep(t *testing.T) {
	llm := &queueLLM{responses: []string{
		"changed src/parser.rs",
		"tests pass",
		`{"approved": true, "feedback": "fine"}`,
		"changed src/lex.rs",
		"tests pass",
		`{"approved": true, "feedback": "fine"}`,
	}}
	gate := &stubGate{report: verifier.Report{CompilePass: true, TestPass: true}}
	coordinator := NewCoordinator(llm, nil)
	coordinator.UseGate(gate, "/repos/demo")

	result, err := coordinator.Run(context.Background(), "fix the parser; fix the lexer")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Completed != 2 {
		t.Fatalf("clean gate must leave steps done: %+v", result.Steps)
	}
}
