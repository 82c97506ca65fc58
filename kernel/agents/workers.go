package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/orchestrator"
	"github.com/barqworks/barqcoder/kernel/session"
	"github.com/barqworks/barqcoder/kernel/tool"
)

// workerIterations bounds each role's own tool-calling loop. Roles work
// on one step at a time, so the budget is tighter than the main loop's.
const workerIterations = 3

// runWorker drives one role through its own tool-calling loop when tools
// are available, falling back to a single exchange otherwise.
func runWorker(ctx context.Context, llm model.LLM, tools *tool.Registry, role Role, input string) (string, error) {
	if tools == nil {
		return complete(ctx, llm, role, input)
	}
	orch, err := orchestrator.New(orchestrator.Config{
		LLM:            llm,
		Tools:          tools,
		PromptPreamble: Prompt(role),
		MaxIterations:  workerIterations,
	})
	if err != nil {
		return "", fmt.Errorf("agents: %s: %w", role, err)
	}
	sess := session.New(fmt.Sprintf("%s-scratch", role), "")
	answer := ""
	for ev := range orch.Run(ctx, sess, input) {
		switch ev.Type {
		case orchestrator.EventDone:
			answer = ev.FinalAnswer
		case orchestrator.EventError:
			return "", fmt.Errorf("agents: %s: %s", role, ev.Err)
		}
	}
	if answer == "" {
		return "", errors.New("agents: " + string(role) + " finished without an answer")
	}
	return answer, nil
}

// Coder implements one plan step and reports what changed.
type Coder struct {
	llm   model.LLM
	tools *tool.Registry
}

func NewCoder(llm model.LLM) *Coder {
	return &Coder{llm: llm}
}

func (c *Coder) Implement(ctx context.Context, step PlanStep, goal string) (string, error) {
	input := fmt.Sprintf("Goal: %s\n\nStep %s: %s", goal, step.ID, step.Description)
	return runWorker(ctx, c.llm, c.tools, RoleCoder, input)
}

// Tester assesses the test impact of an implemented step.
type Tester struct {
	llm   model.LLM
	tools *tool.Registry
}

func NewTester(llm model.LLM) *Tester {
	return &Tester{llm: llm}
}

func (t *Tester) Assess(ctx context.Context, step PlanStep) (string, error) {
	input := fmt.Sprintf("Step %s: %s\n\nImplementation report:\n%s", step.ID, step.Description, step.Output)
	return runWorker(ctx, t.llm, t.tools, RoleTester, input)
}

// Review is the reviewer's verdict on one step.
type Review struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
}

// Reviewer approves or rejects an implemented step.
type Reviewer struct {
	llm   model.LLM
	tools *tool.Registry
}

func NewReviewer(llm model.LLM) *Reviewer {
	return &Reviewer{llm: llm}
}

func (r *Reviewer) Review(ctx context.Context, step PlanStep) (Review, error) {
	input := fmt.Sprintf(
		"Step %s: %s\n\nImplementation report:\n%s\n\nTest assessment:\n%s",
		step.ID, step.Description, step.Output, step.TestReport,
	)
	raw, err := runWorker(ctx, r.llm, r.tools, RoleReviewer, input)
	if err != nil {
		return Review{}, err
	}
	return parseReview(raw), nil
}

// parseReview resolves the reviewer verdict in three stages: strict JSON,
// then an approval keyword scan, then rejection carrying the parse
// failure as feedback.
func parseReview(raw string) Review {
	trimmed := strings.TrimSpace(raw)
	if review, ok := reviewFromJSON(trimmed); ok {
		return review
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "approve") || strings.Contains(lower, "lgtm") ||
		strings.Contains(lower, "looks good") {
		return Review{Approved: true, Feedback: trimmed}
	}
	return Review{
		Approved: false,
		Feedback: "reviewer response was not parseable as a verdict: " + trimmed,
	}
}

// reviewFromJSON accepts an embedded object only when it carries an
// explicit approved verdict. Prose that happens to contain unrelated JSON
// falls through to the keyword scan.
func reviewFromJSON(text string) (Review, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Review{}, false
	}
	blob := []byte(text[start : end+1])
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(blob, &fields); err != nil {
		return Review{}, false
	}
	if _, ok := fields["approved"]; !ok {
		return Review{}, false
	}
	var review Review
	if err := json.Unmarshal(blob, &review); err != nil {
		return Review{}, false
	}
	return review, true
}
