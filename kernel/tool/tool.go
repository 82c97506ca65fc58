package tool

import (
	"context"
	"fmt"

	"github.com/barqworks/barqcoder/kernel/model"
)

// Tool is the executable tool contract. Run receives decoded JSON arguments
// and returns a JSON-shaped result map. Tools degrade gracefully on missing
// or mistyped optional arguments using documented per-field defaults and
// fail with domain errors, never panics.
type Tool interface {
	Name() string
	Description() string
	Declaration() model.ToolDefinition
	Run(context.Context, map[string]any) (map[string]any, error)
}

// NotFoundError reports a lookup for an unregistered tool name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool: %q is not registered", e.Name)
}

// Registry holds the invocable tool set for one session. The set is
// immutable after construction: registration happens before the registry is
// shared, lookups are safe for concurrent readers.
type Registry struct {
	byName map[string]Tool
	order  []Tool
}

// NewRegistry builds a registry from the given tools, rejecting duplicate
// or empty names.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool: nil tool")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool: empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("tool: duplicate tool %q", name)
	}
	r.byName[name] = t
	r.order = append(r.order, t)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return t, nil
}

// Declarations returns model-visible schemas in registration order. The
// set is advertised to the model capability verbatim each turn.
func (r *Registry) Declarations() []model.ToolDefinition {
	decls := make([]model.ToolDefinition, 0, len(r.order))
	for _, t := range r.order {
		decls = append(decls, t.Declaration())
	}
	return decls
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.order))
	for _, t := range r.order {
		names = append(names, t.Name())
	}
	return names
}
