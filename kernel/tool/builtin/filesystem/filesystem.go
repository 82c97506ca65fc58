// Package filesystem exposes the workspace tree to the agent: reading,
// listing, creating, and editing files.
//
// Edits are transactional. An edit in preview mode never touches disk; an
// applied edit snapshots the file, writes the new content, runs the compile
// check, and restores the snapshot byte for byte when the check fails.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/barqworks/barqcoder/kernel/execenv"
	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/checks"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/internal/argparse"
)

const (
	ReadToolName   = "read_file"
	ListToolName   = "list_files"
	CreateToolName = "create_file"
	EditToolName   = "edit_file"

	maxListEntries = 500
)

// CompileChecker gates applied edits. The checks tool satisfies it.
type CompileChecker interface {
	Check(ctx context.Context, dir string) (*checks.Report, error)
}

// Config is shared by all filesystem tools.
type Config struct {
	// Root is the workspace directory all paths resolve against.
	Root string
	// Checker runs after an applied edit. Nil skips the gate.
	Checker CompileChecker
	// FS abstracts file access. Nil means the host filesystem.
	FS execenv.FileSystem
}

func (c Config) withDefaults() Config {
	if c.FS == nil {
		c.FS = execenv.NewHostFileSystem()
	}
	return c
}

// resolve joins a tool-supplied path against the root and rejects escapes.
func (c Config) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("tool: path must not be empty")
	}
	full := filepath.Clean(filepath.Join(c.Root, path))
	root := filepath.Clean(c.Root)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("tool: path %q escapes the workspace", path)
	}
	return full, nil
}

// ReadTool returns file contents, optionally restricted to a line range.
type ReadTool struct {
	cfg Config
}

func NewRead(cfg Config) *ReadTool {
	return &ReadTool{cfg: cfg.withDefaults()}
}

func (t *ReadTool) Name() string        { return ReadToolName }
func (t *ReadTool) Description() string { return "Read a file, optionally a 1-indexed line range." }

func (t *ReadTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":       map[string]any{"type": "string", "description": "file path relative to the workspace"},
				"start_line": map[string]any{"type": "integer", "description": "first line, 1-indexed inclusive"},
				"end_line":   map[string]any{"type": "integer", "description": "last line, 1-indexed inclusive"},
			},
			"required": []string{"path"},
		},
	}
}

func (t *ReadTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := argparse.String(args, "path", true)
	if err != nil {
		return nil, err
	}
	start, err := argparse.Int(args, "start_line", 0)
	if err != nil {
		return nil, err
	}
	end, err := argparse.Int(args, "end_line", 0)
	if err != nil {
		return nil, err
	}
	full, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	raw, err := t.cfg.FS.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", ReadToolName, path, err)
	}
	content := string(raw)
	lines := strings.Split(content, "\n")
	total := len(lines)
	if start > 0 || end > 0 {
		if start <= 0 {
			start = 1
		}
		if end <= 0 || end > total {
			end = total
		}
		if start > total || start > end {
			return nil, fmt.Errorf("tool: %s %q: line range %d-%d outside file of %d lines", ReadToolName, path, start, end, total)
		}
		content = strings.Join(lines[start-1:end], "\n")
	}
	return map[string]any{
		"path":        path,
		"content":     content,
		"total_lines": total,
	}, nil
}

// ListTool walks a directory and reports entries with size and mtime.
type ListTool struct {
	cfg Config
}

func NewList(cfg Config) *ListTool {
	return &ListTool{cfg: cfg.withDefaults()}
}

func (t *ListTool) Name() string        { return ListToolName }
func (t *ListTool) Description() string { return "List files under a directory, optionally by extension." }

func (t *ListTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":      map[string]any{"type": "string", "description": "directory relative to the workspace, defaults to the root"},
				"extension": map[string]any{"type": "string", "description": "filter, e.g. .rs"},
			},
		},
	}
}

func (t *ListTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := argparse.String(args, "path", false)
	if err != nil {
		return nil, err
	}
	extension, err := argparse.String(args, "extension", false)
	if err != nil {
		return nil, err
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	if path == "" {
		path = "."
	}
	full, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}

	entries := make([]map[string]any, 0, 64)
	walkErr := t.cfg.FS.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "target" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if extension != "" && filepath.Ext(p) != extension {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(t.cfg.Root, p)
		if err != nil {
			return err
		}
		entries = append(entries, map[string]any{
			"path":     rel,
			"size":     info.Size(),
			"modified": info.ModTime().Format(time.RFC3339),
		})
		if len(entries) >= maxListEntries {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", ListToolName, path, walkErr)
	}
	return map[string]any{"entries": entries, "count": len(entries)}, nil
}

// CreateTool creates a new file, refusing to clobber an existing one.
type CreateTool struct {
	cfg Config
}

func NewCreate(cfg Config) *CreateTool {
	return &CreateTool{cfg: cfg.withDefaults()}
}

func (t *CreateTool) Name() string        { return CreateToolName }
func (t *CreateTool) Description() string { return "Create a new file. Fails if the file exists." }

func (t *CreateTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "file path relative to the workspace"},
				"content": map[string]any{"type": "string", "description": "initial file content"},
			},
			"required": []string{"path", "content"},
		},
	}
}

func (t *CreateTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := argparse.String(args, "path", true)
	if err != nil {
		return nil, err
	}
	content, err := argparse.Text(args, "content", true)
	if err != nil {
		return nil, err
	}
	full, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	if _, err := t.cfg.FS.Stat(full); err == nil {
		return nil, fmt.Errorf("tool: %s %q: file already exists", CreateToolName, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("tool: %s %q: %w", CreateToolName, path, err)
	}
	if err := t.cfg.FS.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", CreateToolName, path, err)
	}
	if err := t.cfg.FS.WriteFile(full, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", CreateToolName, path, err)
	}
	return map[string]any{"path": path, "bytes": len(content)}, nil
}

// EditTool rewrites a file's content with preview and revert semantics.
type EditTool struct {
	cfg Config
}

func NewEdit(cfg Config) *EditTool {
	return &EditTool{cfg: cfg.withDefaults()}
}

func (t *EditTool) Name() string { return EditToolName }
func (t *EditTool) Description() string {
	return "Replace a file's content. Preview returns the diff without writing; apply writes, compiles, and reverts on failure."
}

func (t *EditTool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        map[string]any{"type": "string", "description": "file path relative to the workspace"},
				"new_content": map[string]any{"type": "string", "description": "full replacement content"},
				"preview":     map[string]any{"type": "boolean", "description": "when true, return the diff without writing"},
			},
			"required": []string{"path", "new_content"},
		},
	}
}

func (t *EditTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := argparse.String(args, "path", true)
	if err != nil {
		return nil, err
	}
	newContent, err := argparse.Text(args, "new_content", true)
	if err != nil {
		return nil, err
	}
	preview, err := argparse.Bool(args, "preview", false)
	if err != nil {
		return nil, err
	}
	full, err := t.cfg.resolve(path)
	if err != nil {
		return nil, err
	}
	snapshot, err := t.cfg.FS.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", EditToolName, path, err)
	}

	patch := renderDiff(string(snapshot), newContent)
	if preview {
		return map[string]any{
			"path":    path,
			"applied": false,
			"preview": true,
			"diff":    patch,
		}, nil
	}

	info, err := t.cfg.FS.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("tool: %s %q: %w", EditToolName, path, err)
	}
	if err := t.cfg.FS.WriteFile(full, []byte(newContent), info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("tool: %s write %q: %w", EditToolName, path, err)
	}

	if t.cfg.Checker != nil {
		report, checkErr := t.cfg.Checker.Check(ctx, t.cfg.Root)
		if checkErr != nil || !report.Success {
			if restoreErr := t.cfg.FS.WriteFile(full, snapshot, info.Mode().Perm()); restoreErr != nil {
				return nil, fmt.Errorf("tool: %s restore %q after failed check: %w", EditToolName, path, restoreErr)
			}
			reason := "compile check failed"
			if checkErr != nil {
				reason = checkErr.Error()
			} else if len(report.Errors) > 0 {
				reason = report.Errors[0].Message
			}
			return map[string]any{
				"path":     path,
				"applied":  false,
				"reverted": true,
				"reason":   reason,
				"diff":     patch,
			}, nil
		}
	}
	return map[string]any{
		"path":    path,
		"applied": true,
		"diff":    patch,
	}, nil
}

// renderDiff produces a compact line-oriented diff of the two contents.
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	beforeRunes, afterRunes, lineArray := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMainRunes(beforeRunes, afterRunes, false))
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
