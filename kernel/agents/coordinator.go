package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool"
	"github.com/barqworks/barqcoder/kernel/verifier"
)

// PipelineResult summarizes one coordinated run.
type PipelineResult struct {
	Goal      string     `json:"goal"`
	Steps     []PlanStep `json:"steps"`
	Completed int        `json:"completed"`
	Rejected  int        `json:"rejected"`
}

// StepObserver is notified as each step changes status. Nil observers are
// allowed.
type StepObserver func(step PlanStep)

// Gate independently confirms compile and test status after the reviewer
// approves a step. The verifier satisfies it.
type Gate interface {
	VerifyEdit(ctx context.Context, edit verifier.Edit) (*verifier.Report, error)
}

// Coordinator runs the planner's steps through coder, tester, and
// reviewer, one step at a time.
//
// A rejected or failed step is recorded and the pipeline moves on: later
// steps still run, so one bad step cannot sink the rest of the plan.
type Coordinator struct {
	planner   *Planner
	coder     *Coder
	tester    *Tester
	reviewer  *Reviewer
	observer  StepObserver
	gate      Gate
	workspace string
}

func NewCoordinator(llm model.LLM, observer StepObserver) *Coordinator {
	return NewCoordinatorWithTools(llm, nil, observer)
}

// NewCoordinatorWithTools gives each worker its own tool-calling loop.
// With a nil registry workers fall back to a single model exchange.
func NewCoordinatorWithTools(llm model.LLM, tools *tool.Registry, observer StepObserver) *Coordinator {
	return &Coordinator{
		planner:  NewPlanner(),
		coder:    &Coder{llm: llm, tools: tools},
		tester:   &Tester{llm: llm, tools: tools},
		reviewer: &Reviewer{llm: llm, tools: tools},
		observer: observer,
	}
}

// UseGate verifies every approved step against the workspace. A step
// whose build or tests regressed is demoted to failed even after the
// reviewer signed off.
func (c *Coordinator) UseGate(gate Gate, workspace string) {
	c.gate = gate
	c.workspace = workspace
}

func (c *Coordinator) notify(step PlanStep) {
	if c.observer != nil {
		c.observer(step)
	}
}

// Run plans the goal and executes every step sequentially.
func (c *Coordinator) Run(ctx context.Context, goal string) (*PipelineResult, error) {
	if goal == "" {
		return nil, fmt.Errorf("agents: goal is required")
	}
	result := &PipelineResult{Goal: goal, Steps: c.planner.Plan(goal)}

	for i := range result.Steps {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		step := &result.Steps[i]
		step.Status = StatusInProgress
		c.notify(*step)
		c.runStep(ctx, step, goal)
		if step.Status == StatusDone {
			result.Completed++
		} else {
			result.Rejected++
		}
		c.notify(*step)
	}
	return result, nil
}

// runStep drives one step through the three workers. Worker errors fail
// the step, never the pipeline.
func (c *Coordinator) runStep(ctx context.Context, step *PlanStep, goal string) {
	output, err := c.coder.Implement(ctx, *step, goal)
	if err != nil {
		step.Status = StatusFailed
		step.Feedback = err.Error()
		return
	}
	step.Output = output

	report, err := c.tester.Assess(ctx, *step)
	if err != nil {
		step.Status = StatusFailed
		step.Feedback = err.Error()
		return
	}
	step.TestReport = report

	review, err := c.reviewer.Review(ctx, *step)
	if err != nil {
		step.Status = StatusFailed
		step.Feedback = err.Error()
		return
	}
	step.Approved = review.Approved
	step.Feedback = review.Feedback
	if !review.Approved {
		step.Status = StatusFailed
		return
	}

	if c.gate != nil {
		report, err := c.gate.VerifyEdit(ctx, verifier.Edit{Workspace: c.workspace})
		if err != nil {
			step.Status = StatusFailed
			step.Feedback = err.Error()
			return
		}
		if report.ShouldRevert {
			step.Approved = false
			step.Status = StatusFailed
			step.Feedback = "verification gate: " + strings.Join(report.Errors, "; ")
			return
		}
	}
	step.Status = StatusDone
}
