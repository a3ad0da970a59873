package middlewares

import (
	"context"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/types"
)

// ToolPredicate decides whether a tool stays visible to the model for one
// generate call.
type ToolPredicate func(ctx context.Context, event *agent.GenerateEvent, def types.ToolDefinition) bool

// ToolSelector filters the request's tool list per call, e.g. to gate
// tools on a role carried in the context value.
type ToolSelector struct {
	agent.NoopMiddleware
	keep ToolPredicate
}

func NewToolSelector(keep ToolPredicate) *ToolSelector {
	return &ToolSelector{keep: keep}
}

// NewToolAllowlist keeps only the named tools.
func NewToolAllowlist(names ...string) *ToolSelector {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return NewToolSelector(func(ctx context.Context, event *agent.GenerateEvent, def types.ToolDefinition) bool {
		return allowed[def.Name]
	})
}

func (m *ToolSelector) BeforeGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, event); err != nil {
		return err
	}
	if m.keep == nil || len(event.Request.Tools) == 0 {
		return nil
	}
	kept := event.Request.Tools[:0]
	for _, def := range event.Request.Tools {
		if m.keep(ctx, event, def) {
			kept = append(kept, def)
		}
	}
	event.Request.Tools = kept
	return nil
}
