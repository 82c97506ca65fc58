package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barqworks/barqcoder/internal/config"
	"github.com/barqworks/barqcoder/internal/workspace"
	"github.com/barqworks/barqcoder/kernel/agents"
	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/orchestrator"
	"github.com/barqworks/barqcoder/kernel/retrieval"
	"github.com/barqworks/barqcoder/kernel/session"
	"github.com/barqworks/barqcoder/kernel/tool"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/checks"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/filesystem"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/gitops"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/search"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/shell"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/workspaceops"
	"github.com/barqworks/barqcoder/kernel/verifier"
)

const consoleHelp = `commands:
  index                       rebuild the semantic index for the active workspace
  goal <text>                 run the plan/code/test/review pipeline on a goal
  sessions                    list recorded sessions, newest first
  replay <id>                 print a stored session's events
  workspace list              show registered workspaces
  workspace add <name> <path> register a repository
  workspace remove <name>     drop a registration
  workspace switch <name>     change the active workspace
  clear                       start a fresh session
  help                        show this help
  exit                        leave the console
anything else is sent to the agent`

// console owns the interactive loop and the wiring behind it.
type console struct {
	cfg      *config.Config
	logger   *zap.Logger
	llm      model.LLM
	store    session.Store
	idx      *sessionIndex
	registry *workspace.Registry
	vectors  *retrieval.Store
	out      io.Writer

	sess *session.Session
}

func (c *console) activeDir() string {
	if ws, ok := c.registry.Active(); ok {
		return ws.Path
	}
	return "."
}

// buildTools assembles the registry for the active workspace.
func (c *console) buildTools() (*tool.Registry, error) {
	dir := c.activeDir()
	checker := checks.New(checks.Config{WorkingDir: dir})
	fsCfg := filesystem.Config{Root: dir, Checker: checker}
	searchTool, err := search.New(c.vectors)
	if err != nil {
		return nil, err
	}
	return tool.NewRegistry(
		shell.New(shell.Config{WorkingDir: dir}),
		gitops.New(gitops.Config{RepoDir: dir}),
		checker,
		filesystem.NewRead(fsCfg),
		filesystem.NewList(fsCfg),
		filesystem.NewCreate(fsCfg),
		filesystem.NewEdit(fsCfg),
		searchTool,
		workspaceops.New(c.registry),
	)
}

func (c *console) newSession(ctx context.Context) error {
	id := uuid.NewString()
	c.sess = session.New(id, c.activeDir())
	if err := c.store.Save(ctx, c.sess); err != nil {
		return err
	}
	return c.idx.UpsertSession(c.sess.Workspace, id, c.sess.CreatedAt)
}

func (c *console) run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "barq> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("console: init readline: %w", err)
	}
	defer rl.Close()

	if err := c.newSession(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, consoleHelp)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := c.dispatch(ctx, line); quit {
			return nil
		}
	}
}

// dispatch handles one console line. A true return exits the loop.
func (c *console) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(c.out, consoleHelp)
	case "clear":
		if err := c.newSession(ctx); err != nil {
			c.printErr(err)
		} else {
			fmt.Fprintln(c.out, "started session", c.sess.ID)
		}
	case "index":
		c.cmdIndex(ctx)
	case "sessions":
		c.cmdSessions()
	case "replay":
		if len(fields) < 2 {
			c.printErr(fmt.Errorf("usage: replay <id>"))
			return false
		}
		c.cmdReplay(ctx, fields[1])
	case "goal":
		goal := strings.TrimSpace(strings.TrimPrefix(line, "goal"))
		if goal == "" {
			c.printErr(fmt.Errorf("usage: goal <text>"))
			return false
		}
		c.cmdGoal(ctx, goal)
	case "workspace":
		c.cmdWorkspace(fields[1:])
	default:
		c.cmdAsk(ctx, line)
	}
	return false
}

func (c *console) cmdIndex(ctx context.Context) {
	dir := c.activeDir()
	start := time.Now()
	stats, err := c.vectors.Index(ctx, dir)
	if err != nil {
		c.printErr(err)
		return
	}
	c.logger.Info("workspace indexed",
		zap.String("dir", dir),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
	)
	fmt.Fprintf(c.out, "indexed %d files into %d chunks (%d symbols) in %s\n",
		stats.Files, stats.Chunks, stats.Symbols, time.Since(start).Round(time.Millisecond))
}

func (c *console) cmdSessions() {
	records, err := c.idx.ListSessions(20)
	if err != nil {
		c.printErr(err)
		return
	}
	renderSessionList(c.out, records)
}

func (c *console) cmdReplay(ctx context.Context, id string) {
	var events []session.Event
	for ev := range session.Replay(ctx, c.store, id) {
		events = append(events, ev)
	}
	if len(events) == 0 {
		fmt.Fprintf(c.out, "session %s has no recorded events\n", id)
		return
	}
	renderReplay(c.out, events)
}

func (c *console) cmdGoal(ctx context.Context, goal string) {
	tools, err := c.buildTools()
	if err != nil {
		c.printErr(err)
		return
	}
	coordinator := agents.NewCoordinatorWithTools(c.llm, tools, func(step agents.PlanStep) {
		if step.Status == agents.StatusInProgress {
			fmt.Fprintf(c.out, "step %s: %s...\n", step.ID, step.Description)
		}
	})
	dir := c.activeDir()
	gate, err := verifier.New(verifier.Config{
		Checker: checks.New(checks.Config{WorkingDir: dir}),
		Deps:    c.vectors,
	})
	if err != nil {
		c.printErr(err)
		return
	}
	coordinator.UseGate(gate, dir)
	result, err := coordinator.Run(ctx, goal)
	if err != nil {
		c.printErr(err)
		return
	}
	renderPipeline(c.out, result)

	name := fmt.Sprintf("goal-%s", time.Now().Format("20060102-150405"))
	if err := agents.SaveGoal(c.cfg.GoalsDir(), agents.FromResult(name, result)); err != nil {
		c.printErr(err)
	} else {
		fmt.Fprintf(c.out, "saved as %s\n", name)
	}
}

func (c *console) cmdWorkspace(args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		active, _ := c.registry.Active()
		for _, ws := range c.registry.List() {
			mark := "  "
			if ws.Name == active.Name {
				mark = "* "
			}
			fmt.Fprintf(c.out, "%s%s  %s\n", mark, ws.Name, ws.Path)
		}
	case "add":
		if len(args) < 3 {
			c.printErr(fmt.Errorf("usage: workspace add <name> <path>"))
			return
		}
		if err := c.registry.Add(args[1], args[2]); err != nil {
			c.printErr(err)
		}
	case "remove":
		if len(args) < 2 {
			c.printErr(fmt.Errorf("usage: workspace remove <name>"))
			return
		}
		if err := c.registry.Remove(args[1]); err != nil {
			c.printErr(err)
		}
	case "switch":
		if len(args) < 2 {
			c.printErr(fmt.Errorf("usage: workspace switch <name>"))
			return
		}
		if err := c.registry.Switch(args[1]); err != nil {
			c.printErr(err)
			return
		}
		fmt.Fprintf(c.out, "active workspace: %s\n", args[1])
	default:
		c.printErr(fmt.Errorf("unknown workspace command %q", args[0]))
	}
}

func (c *console) cmdAsk(ctx context.Context, input string) {
	tools, err := c.buildTools()
	if err != nil {
		c.printErr(err)
		return
	}
	orch, err := orchestrator.New(orchestrator.Config{
		LLM:           c.llm,
		Tools:         tools,
		Store:         c.store,
		Retriever:     c.vectors,
		MaxIterations: c.cfg.Agent.MaxIterations,
	})
	if err != nil {
		c.printErr(err)
		return
	}
	if err := c.idx.TouchEvent(c.sess.Workspace, c.sess.ID, input, time.Now()); err != nil {
		c.logger.Warn("session index update failed", zap.Error(err))
	}
	renderEvents(c.out, orch.Run(ctx, c.sess, input))
}

func (c *console) printErr(err error) {
	fmt.Fprintf(c.out, "%s %v\n", errColor.Sprint("error:"), err)
}
