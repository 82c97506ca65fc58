// Package workspaceops lets the agent manage the workspace registry.
package workspaceops

import (
	"context"
	"fmt"
	"strings"

	"github.com/barqworks/barqcoder/internal/workspace"
	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/tool/builtin/internal/argparse"
)

// ToolName is the workspace management tool dispatch key.
const ToolName = "manage_workspace"

type Tool struct {
	registry *workspace.Registry
}

func New(registry *workspace.Registry) *Tool {
	return &Tool{registry: registry}
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Manage registered workspaces: add, remove, switch, list."
}

func (t *Tool) Declaration() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{"type": "string", "description": "one of add|remove|switch|list"},
				"name":   map[string]any{"type": "string", "description": "workspace name, required except for list"},
				"path":   map[string]any{"type": "string", "description": "repository path, required for add"},
			},
			"required": []string{"action"},
		},
	}
}

func (t *Tool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	action, err := argparse.String(args, "action", true)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(action) {
	case "list":
		return t.list(), nil
	case "add":
		name, err := argparse.String(args, "name", true)
		if err != nil {
			return nil, err
		}
		path, err := argparse.String(args, "path", true)
		if err != nil {
			return nil, err
		}
		if err := t.registry.Add(name, path); err != nil {
			return nil, err
		}
		return map[string]any{"added": name}, nil
	case "remove":
		name, err := argparse.String(args, "name", true)
		if err != nil {
			return nil, err
		}
		if err := t.registry.Remove(name); err != nil {
			return nil, err
		}
		return map[string]any{"removed": name}, nil
	case "switch":
		name, err := argparse.String(args, "name", true)
		if err != nil {
			return nil, err
		}
		if err := t.registry.Switch(name); err != nil {
			return nil, err
		}
		return map[string]any{"active": name}, nil
	default:
		return nil, fmt.Errorf("tool: %s invalid action %q, allowed: add|remove|switch|list", ToolName, action)
	}
}

func (t *Tool) list() map[string]any {
	entries := make([]map[string]any, 0)
	activeName := ""
	if active, ok := t.registry.Active(); ok {
		activeName = active.Name
	}
	for _, ws := range t.registry.List() {
		entries = append(entries, map[string]any{
			"name":   ws.Name,
			"path":   ws.Path,
			"active": ws.Name == activeName,
		})
	}
	return map[string]any{"workspaces": entries, "active": activeName}
}
