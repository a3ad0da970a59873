// Package middlewares ships composable middleware for the agent loop:
// dynamic model/prompt/tool selection, transcript summarization and
// trimming, and human approval gates for sensitive tools.
package middlewares

import (
	"context"

	"github.com/chainguard-dev/clog"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/llm"
)

// ModelSelector picks the model (and optionally a different provider) for
// one generate call. Return empty strings/nil to keep the defaults.
type ModelSelector func(ctx context.Context, event *agent.GenerateEvent) (model string, provider llm.Provider)

// DynamicModel rewrites the request model per call.
type DynamicModel struct {
	agent.NoopMiddleware
	selector ModelSelector
}

func NewDynamicModel(selector ModelSelector) *DynamicModel {
	return &DynamicModel{selector: selector}
}

// NewModelEscalation routes to a larger model once the transcript reaches
// threshold messages.
func NewModelEscalation(threshold int, model string, provider llm.Provider) *DynamicModel {
	return NewDynamicModel(func(ctx context.Context, event *agent.GenerateEvent) (string, llm.Provider) {
		if len(event.Request.Messages) < threshold {
			return "", nil
		}
		return model, provider
	})
}

func (m *DynamicModel) BeforeGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, event); err != nil {
		return err
	}
	if m.selector == nil {
		return nil
	}
	model, provider := m.selector(ctx, event)
	if model != "" && model != event.Request.Model {
		clog.FromContext(ctx).Debugf("dynamic model: %s -> %s", event.Request.Model, model)
		event.Request.Model = model
	}
	if provider != nil {
		event.Override = provider
	}
	return nil
}
