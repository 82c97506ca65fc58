package agents

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberedLine = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s+(.+)$`)
	conjunctions = regexp.MustCompile(`\s*(?:;|\bthen\b|\band then\b)\s*`)
)

// Planner decomposes a goal into plan steps. The decomposition is
// deterministic: the same goal always yields the same plan.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Plan splits the goal into steps. Numbered or bulleted lines win; a flat
// sentence splits on its conjunctions; anything else becomes the standard
// three-step plan.
func (p *Planner) Plan(goal string) []PlanStep {
	goal = strings.TrimSpace(goal)
	descriptions := numberedSteps(goal)
	if len(descriptions) == 0 {
		descriptions = clauseSteps(goal)
	}
	if len(descriptions) == 0 {
		descriptions = []string{
			"Locate the code relevant to: " + goal,
			"Implement the change: " + goal,
			"Verify the change compiles and its tests pass",
		}
	}
	steps := make([]PlanStep, len(descriptions))
	for i, desc := range descriptions {
		steps[i] = PlanStep{ID: strconv.Itoa(i + 1), Description: desc, Status: StatusPending}
	}
	return steps
}

func numberedSteps(goal string) []string {
	var out []string
	for _, line := range strings.Split(goal, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func clauseSteps(goal string) []string {
	parts := conjunctions.Split(goal, -1)
	var out []string
	for _, part := range parts {
		part = strings.TrimSpace(strings.Trim(part, "."))
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}
