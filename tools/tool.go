// Package tools defines the tool surface the agent exposes to models:
// the Tool interface, a schema reflector, a process-wide registry with
// bundles, and a set of built-in tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaylabs/agentloop/types"
)

type Tool interface {
	Definition() types.ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// FuncTool wraps a plain function as a Tool.
type FuncTool struct {
	def types.ToolDefinition
	fn  func(ctx context.Context, args json.RawMessage) (any, error)
}

func NewFuncTool(name, description string, schema map[string]any, fn func(ctx context.Context, args json.RawMessage) (any, error)) *FuncTool {
	return &FuncTool{
		def: types.ToolDefinition{
			Name:        name,
			Description: description,
			JSONSchema:  schema,
		},
		fn: fn,
	}
}

func (t *FuncTool) Definition() types.ToolDefinition { return t.def }

func (t *FuncTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("tool %q has no execute function", t.def.Name)
	}
	return t.fn(ctx, args)
}

// Typed builds a tool whose arguments unmarshal into A, with the JSON
// schema reflected from A's struct tags.
func Typed[A any](name, description string, fn func(ctx context.Context, args A) (any, error)) Tool {
	schema := SchemaFor[A]()
	return NewFuncTool(name, description, schema, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("tool %s: decode arguments: %w", name, err)
			}
		}
		return fn(ctx, args)
	})
}
