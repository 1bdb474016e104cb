package tool

import (
	"fmt"
	"strings"
	"sync"

	llmadapter "github.com/repcoach/repcoach/engine/llm/adapter"
)

// Registry holds tools by name, preserving registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
	order []string
}

func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(d *Definition) error {
	if d == nil || strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

func (r *Registry) Find(name string) (*Definition, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions returns adapter declarations in registration order.
func (r *Registry) Definitions() []llmadapter.ToolDefinition {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llmadapter.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Adapter())
	}
	return out
}
