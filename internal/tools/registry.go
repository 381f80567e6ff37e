// Package tools is a name-keyed registry of callable tools, each described
// by a JSON Schema validated with santhosh-tekuri/jsonschema/v5 before
// dispatch. Grounded on the teacher's internal/agent.ToolRegistry (thread-
// safe map[string]Tool, name/size limits, not-found error results instead of
// Go errors) with JSON-Schema argument validation added ahead of Execute.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Najia-afk/Aria-moltbot-sub003/internal/models"
)

func bytesReader(data []byte) io.Reader { return bytes.NewReader(data) }

const (
	// MaxToolNameLength bounds a tool name to prevent pathological registrations.
	MaxToolNameLength = 256
	// MaxArgumentsSize bounds a tool call's serialized argument payload.
	MaxArgumentsSize = 10 << 20
)

// Handler executes one tool invocation given its validated arguments.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// entry pairs a tool's compiled schema with its handler.
type entry struct {
	description string
	schema      *jsonschema.Schema
	handler     Handler
}

// Registry is a thread-safe name -> (schema, handler) map.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register compiles schemaJSON and adds name to the registry, replacing any
// existing registration under the same name.
func (r *Registry) Register(name, description string, schemaJSON []byte, handler Handler) error {
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tool name %q exceeds maximum length", name)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name+".json", bytesReader(schemaJSON)); err != nil {
		return fmt.Errorf("add schema resource for %s: %w", name, err)
	}
	schema, err := compiler.Compile(name + ".json")
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{description: description, schema: schema, handler: handler}
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Specs returns the catalog of registered tools, in the shape chat engines
// pass through to model providers.
type Spec struct {
	Name        string
	Description string
}

func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Spec, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, Spec{Name: name, Description: e.description})
	}
	return out
}

// Execute validates call.Arguments against the tool's schema, then invokes
// its handler. A missing tool, oversized payload, or schema violation
// returns a failed ToolResult rather than a Go error, since this is the
// contract the chat engine feeds straight back to the model.
func (r *Registry) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	if len(call.Arguments) > MaxArgumentsSize {
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: "tool arguments exceed maximum size"}
	}

	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: "tool not found: " + call.Name}
	}

	var parsed any
	if err := json.Unmarshal([]byte(call.Arguments), &parsed); err != nil {
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: "invalid JSON arguments: " + err.Error()}
	}
	if err := e.schema.Validate(parsed); err != nil {
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: "arguments failed schema validation: " + err.Error()}
	}

	start := time.Now()
	output, err := e.handler(ctx, json.RawMessage(call.Arguments))
	result := models.ToolResult{ToolCallID: call.ID, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Output = output
	return result
}
