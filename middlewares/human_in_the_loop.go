package middlewares

import (
	"context"
	"fmt"

	"github.com/relaylabs/agentloop/agent"
)

// HumanInTheLoop gates named tools behind external approval: when the model
// calls a gated tool, the run pauses with a pending interrupt instead of
// executing it. The caller resolves it with agent.Resume.
type HumanInTheLoop struct {
	agent.NoopMiddleware
	gated map[string]string
}

// NewHumanInTheLoop gates the given tools. The map value is a description
// shown to the reviewer; "" gets a generated one.
func NewHumanInTheLoop(gatedTools map[string]string) *HumanInTheLoop {
	gated := make(map[string]string, len(gatedTools))
	for name, desc := range gatedTools {
		gated[name] = desc
	}
	return &HumanInTheLoop{gated: gated}
}

// GateTools is shorthand for gating tools with generated descriptions.
func GateTools(names ...string) *HumanInTheLoop {
	gated := make(map[string]string, len(names))
	for _, n := range names {
		gated[n] = ""
	}
	return &HumanInTheLoop{gated: gated}
}

func (m *HumanInTheLoop) BeforeTool(ctx context.Context, event *agent.ToolEvent) error {
	if err := m.NoopMiddleware.BeforeTool(ctx, event); err != nil {
		return err
	}
	desc, gated := m.gated[event.ToolCall.Name]
	if !gated {
		return nil
	}
	if desc == "" {
		desc = fmt.Sprintf("tool %s with arguments %s", event.ToolCall.Name, string(event.ToolCall.Arguments))
	}
	return agent.Interrupt("%s", desc)
}
