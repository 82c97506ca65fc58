package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// GoalTask is one trackable unit inside a goal phase.
type GoalTask struct {
	Description string     `yaml:"description"`
	Status      StepStatus `yaml:"status"`
}

// GoalPhase groups related tasks.
type GoalPhase struct {
	Name  string     `yaml:"name"`
	Tasks []GoalTask `yaml:"tasks"`
}

// GoalFile is a long-running goal persisted across sessions.
type GoalFile struct {
	Name   string      `yaml:"name"`
	Goal   string      `yaml:"goal"`
	Phases []GoalPhase `yaml:"phases"`
}

// FromResult converts a finished pipeline run into a goal file so the plan
// survives the session.
func FromResult(name string, result *PipelineResult) *GoalFile {
	phase := GoalPhase{Name: "plan"}
	for _, step := range result.Steps {
		phase.Tasks = append(phase.Tasks, GoalTask{
			Description: step.Description,
			Status:      step.Status,
		})
	}
	return &GoalFile{Name: name, Goal: result.Goal, Phases: []GoalPhase{phase}}
}

// Progress reports done tasks against the total.
func (g *GoalFile) Progress() (done, total int) {
	for _, phase := range g.Phases {
		for _, task := range phase.Tasks {
			total++
			if task.Status == StatusDone {
				done++
			}
		}
	}
	return done, total
}

// SaveGoal writes the goal file under dir as <name>.yaml.
func SaveGoal(dir string, goal *GoalFile) error {
	if goal.Name == "" {
		return fmt.Errorf("agents: goal name is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("agents: create goals dir: %w", err)
	}
	raw, err := yaml.Marshal(goal)
	if err != nil {
		return fmt.Errorf("agents: encode goal %q: %w", goal.Name, err)
	}
	path := filepath.Join(dir, goal.Name+".yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("agents: write goal %q: %w", goal.Name, err)
	}
	return nil
}

// LoadGoal reads one goal file by name.
func LoadGoal(dir, name string) (*GoalFile, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("agents: read goal %q: %w", name, err)
	}
	var goal GoalFile
	if err := yaml.Unmarshal(raw, &goal); err != nil {
		return nil, fmt.Errorf("agents: parse goal %q: %w", name, err)
	}
	return &goal, nil
}

// ListGoals returns the names of stored goals, sorted.
func ListGoals(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agents: list goals: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}
