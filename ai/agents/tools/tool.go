// Package tools defines the capability contract consumed by the
// execution loop and the invoker that dispatches calls with timeout
// and failure containment.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/lexisense/ai/core/llm"
)

// Tool is the interface for legal capability tools.
type Tool interface {
	Name() string
	Description() string
	InputType() map[string]interface{}
	Run(ctx context.Context, inputJSON string) (string, error)
}

// Cleaner is implemented by tools holding external resources that
// must be released on session teardown.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Result is the outcome of one tool call. A call always produces
// exactly one Result: failures (unknown tool, timeout, tool error,
// panic) are carried in Err rather than surfaced to the caller, so
// the execution loop stays live.
type Result struct {
	CallID   string
	Name     string
	Content  string
	Err      string
	Duration time.Duration
}

// IsError reports whether the call failed.
func (r Result) IsError() bool { return r.Err != "" }

// Observation renders the result as transcript content for the model.
func (r Result) Observation() string {
	if r.IsError() {
		return fmt.Sprintf("tool %s failed: %s", r.Name, r.Err)
	}
	return r.Content
}

// Registry holds the registered tool capabilities.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors returns the function-calling descriptors for every
// registered tool, sorted by name for stable prompts.
func (r *Registry) Descriptors() []llm.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]llm.ToolDescriptor, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		params, err := json.Marshal(t.InputType())
		if err != nil {
			params = []byte(`{"type":"object"}`)
		}
		out = append(out, llm.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  string(params),
		})
	}
	return out
}

// Cleanup releases resources on every tool implementing Cleaner.
func (r *Registry) Cleanup(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var firstErr error
	for name, t := range r.tools {
		c, ok := t.(Cleaner)
		if !ok {
			continue
		}
		if err := c.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup %s: %w", name, err)
		}
	}
	return firstErr
}
