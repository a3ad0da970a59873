package middlewares

import (
	"context"

	"github.com/relaylabs/agentloop/agent"
)

// PromptBuilder computes the system prompt for one generate call, typically
// from the invocation's context value. Return "" to keep the configured
// prompt.
type PromptBuilder func(ctx context.Context, event *agent.GenerateEvent) (string, error)

// DynamicPrompt recomputes the system prompt before every model call.
type DynamicPrompt struct {
	agent.NoopMiddleware
	build PromptBuilder
}

func NewDynamicPrompt(build PromptBuilder) *DynamicPrompt {
	return &DynamicPrompt{build: build}
}

func (m *DynamicPrompt) BeforeGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, event); err != nil {
		return err
	}
	if m.build == nil {
		return nil
	}
	prompt, err := m.build(ctx, event)
	if err != nil {
		return err
	}
	if prompt != "" {
		event.Request.SystemPrompt = prompt
	}
	return nil
}
