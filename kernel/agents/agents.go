// Package agents implements the planner/coder/tester/reviewer pipeline
// that decomposes a goal into steps and drives each step through
// implementation, testing, and review.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/kernel/model"
)

// Role identifies a pipeline participant.
type Role string

const (
	RolePlanner  Role = "planner"
	RoleCoder    Role = "coder"
	RoleTester   Role = "tester"
	RoleReviewer Role = "reviewer"
)

var rolePrompts = map[Role]string{
	RolePlanner: `You break a coding goal into small, independently verifiable steps.
Respond with one step description per line, nothing else.`,
	RoleCoder: `You implement one step of a coding plan inside a repository.
Describe precisely what you changed and why, mentioning every touched file.`,
	RoleTester: `You assess the test impact of one implemented step.
Describe what was exercised and report any failures you can see.`,
	RoleReviewer: `You review one implemented step.
Respond with a JSON object {"approved": true|false, "feedback": "..."} and nothing else.`,
}

// Prompt returns the system prompt for a role.
func Prompt(role Role) string {
	return rolePrompts[role]
}

// StepStatus tracks a plan step through the pipeline.
type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusInProgress StepStatus = "in_progress"
	StatusDone       StepStatus = "done"
	StatusFailed     StepStatus = "failed"
)

// PlanStep is one unit of work in a plan.
type PlanStep struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	// Output is the coder's account of the change.
	Output string `json:"output,omitempty"`
	// TestReport is the tester's assessment.
	TestReport string `json:"test_report,omitempty"`
	// Feedback is the reviewer's verdict text.
	Feedback string `json:"feedback,omitempty"`
	Approved bool   `json:"approved"`
}

// complete runs one non-streaming exchange and returns the model's text:
// the final answer when present, otherwise the reasoning.
func complete(ctx context.Context, llm model.LLM, role Role, input string) (string, error) {
	req := &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: Prompt(role)},
			{Role: model.RoleUser, Content: input},
		},
	}
	var final *model.AgentResponse
	for res, err := range llm.Generate(ctx, req) {
		if err != nil {
			return "", fmt.Errorf("agents: %s: %w", role, err)
		}
		if res != nil && res.Final != nil {
			final = res.Final
		}
	}
	if final == nil {
		return "", fmt.Errorf("agents: %s produced no response", role)
	}
	if final.FinalAnswer != nil {
		return *final.FinalAnswer, nil
	}
	return strings.TrimSpace(final.Reasoning), nil
}
