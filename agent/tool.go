package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tool is a named capability the model may invoke.
type Tool struct {
	Name        string
	Description string
	// Schema is the JSON schema of the arguments object, shown to the model.
	Schema json.RawMessage
	// Invoke runs the tool. A non-empty output is shown to the model even
	// when err is set; otherwise the error text is.
	Invoke func(ctx context.Context, input json.RawMessage) (string, error)
}

// Registry is the fixed set of tools available to an agent.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry. Names must be unique and non-empty.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if t.Invoke == nil {
			return nil, fmt.Errorf("tool %s: no Invoke function", name)
		}
		if strings.EqualFold(name, FinalAnswer) {
			return nil, fmt.Errorf("tool name %q is reserved", name)
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %s", name)
		}
		t.Name = name
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get looks a tool up by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name]
	}
	return out
}

// Names returns the tool names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
