// Package executor runs the tool calls a model requests.
//
// Tools are registered once in a Registry. A Coordinator executes a batch of
// calls concurrently, bounds each call with its own timeout, and reports every
// call's outcome individually so one failing tool never hides its siblings.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ToolDefinition describes a tool to the model and to the coordinator
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is a JSON schema object ({"type":"object","properties":...})
	Parameters map[string]interface{}
	// Mandatory tools abort the request when they fail
	Mandatory bool
	// Timeout overrides the request and coordinator timeouts when > 0
	Timeout time.Duration
}

// Tool is an executable tool
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// FuncTool adapts a plain function into a Tool
type FuncTool struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, args map[string]interface{}) (string, error)
}

func (f FuncTool) Definition() ToolDefinition { return f.Def }

func (f FuncTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return f.Fn(ctx, args)
}

// ErrToolExists is returned when registering a name twice
var ErrToolExists = errors.New("tool already registered")

// Registry holds the tools available to the coordinator
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tools; the first name conflict stops registration
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Definition().Name)
		if name == "" {
			return fmt.Errorf("tool has empty name")
		}
		if _, ok := r.tools[name]; ok {
			return fmt.Errorf("%w: %s", ErrToolExists, name)
		}
		r.tools[name] = tool
	}
	return nil
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions lists the definitions of the tools allowed by policy, sorted by name
func (r *Registry) Definitions(policy Policy) []ToolDefinition {
	r.mu.RLock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for name, tool := range r.tools {
		if policy.Allows(name) {
			defs = append(defs, tool.Definition())
		}
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Policy scopes one request's access to the registry
type Policy struct {
	// Allowed restricts the usable tools; empty allows every registered tool
	Allowed []string
	// Timeout applies to tools without their own timeout when > 0
	Timeout time.Duration
}

// Allows reports whether the policy permits the named tool
func (p Policy) Allows(name string) bool {
	if len(p.Allowed) == 0 {
		return true
	}
	for _, allowed := range p.Allowed {
		if allowed == name {
			return true
		}
	}
	return false
}
