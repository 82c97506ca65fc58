package gitops

import (
	"context"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/internal/argparse"
)

const (
	// ToolName is the version-control tool dispatch key.
	ToolName = "git_ops"

	defaultLogLimit = 10
	commitAuthor    = "barqcoder"
	commitEmail     = "agent@barqcoder.local"
)

// allowedOperations is the fixed sub-operation allow-list. Anything else is
// rejected with an error naming the invalid operation.
var allowedOperations = map[string]struct{}{
	"status": {},
	"diff":   {},
	"log":    {},
	"add":    {},
	"commit": {},
}

// Config configures the git tool.
type Config struct {
	// RepoDir is the repository worktree root.
	RepoDir string
}

// Tool performs a restricted set of git operations through go-git, never a
// subprocess.
type Tool struct {
	cfg Config
}

func New(cfg Config) *Tool {
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Git operations restricted to status/diff/log/add/commit."
}

func (t *Tool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{"type": "string", "description": "one of status|diff|log|add|commit"},
				"path":      map[string]any{"type": "string", "description": "path for add, defaults to all changes"},
				"message":   map[string]any{"type": "string", "description": "commit message, required for commit"},
			},
			"required": []string{"operation"},
		},
	}
}

func (t *Tool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	operation, err := argparse.String(args, "operation", true)
	if err != nil {
		return nil, err
	}
	operation = strings.ToLower(operation)
	if _, ok := allowedOperations[operation]; !ok {
		return nil, fmt.Errorf("tool: %s invalid operation %q, allowed: status|diff|log|add|commit", ToolName, operation)
	}

	repo, err := git.PlainOpen(t.cfg.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("tool: %s open repository %q: %w", ToolName, t.cfg.RepoDir, err)
	}

	switch operation {
	case "status":
		return t.status(repo)
	case "diff":
		return t.diff(repo)
	case "log":
		return t.log(repo)
	case "add":
		path, err := argparse.String(args, "path", false)
		if err != nil {
			return nil, err
		}
		return t.add(repo, path)
	case "commit":
		message, err := argparse.String(args, "message", true)
		if err != nil {
			return nil, err
		}
		return t.commit(repo, message)
	}
	return nil, fmt.Errorf("tool: %s invalid operation %q", ToolName, operation)
}

func (t *Tool) status(repo *git.Repository) (map[string]any, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("tool: %s worktree: %w", ToolName, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("tool: %s status: %w", ToolName, err)
	}
	return map[string]any{
		"output": status.String(),
		"clean":  status.IsClean(),
	}, nil
}

// diff renders the patch introduced by the latest commit. Uncommitted
// changes are visible through status.
func (t *Tool) diff(repo *git.Repository) (map[string]any, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("tool: %s head: %w", ToolName, err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("tool: %s head commit: %w", ToolName, err)
	}
	if commit.NumParents() == 0 {
		return map[string]any{"output": "", "note": "head commit has no parent"}, nil
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("tool: %s parent commit: %w", ToolName, err)
	}
	patch, err := parent.Patch(commit)
	if err != nil {
		return nil, fmt.Errorf("tool: %s patch: %w", ToolName, err)
	}
	return map[string]any{"output": patch.String()}, nil
}

func (t *Tool) log(repo *git.Repository) (map[string]any, error) {
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("tool: %s log: %w", ToolName, err)
	}
	defer iter.Close()

	entries := make([]map[string]any, 0, defaultLogLimit)
	for len(entries) < defaultLogLimit {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		entries = append(entries, map[string]any{
			"hash":    commit.Hash.String(),
			"author":  commit.Author.Name,
			"when":    commit.Author.When.Format(time.RFC3339),
			"message": strings.TrimSpace(commit.Message),
		})
	}
	return map[string]any{"commits": entries}, nil
}

func (t *Tool) add(repo *git.Repository, path string) (map[string]any, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("tool: %s worktree: %w", ToolName, err)
	}
	if path == "" {
		if err := worktree.AddGlob("."); err != nil {
			return nil, fmt.Errorf("tool: %s add all: %w", ToolName, err)
		}
		return map[string]any{"added": "."}, nil
	}
	if _, err := worktree.Add(path); err != nil {
		return nil, fmt.Errorf("tool: %s add %q: %w", ToolName, path, err)
	}
	return map[string]any{"added": path}, nil
}

func (t *Tool) commit(repo *git.Repository, message string) (map[string]any, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("tool: %s worktree: %w", ToolName, err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthor,
			Email: commitEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool: %s commit: %w", ToolName, err)
	}
	return map[string]any{"hash": hash.String()}, nil
}
