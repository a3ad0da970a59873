package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/types"
)

// Middleware intercepts an agent run at fixed points. Turn hooks
// (BeforeAgent/AfterAgent) wrap the whole invocation and may rewrite the
// transcript or state; generate hooks wrap each model call and may rewrite
// the outgoing request, including its model, prompt and tool list; tool
// hooks wrap each tool execution. BeforeTool may return an *InterruptError
// to pause the run for an external decision.
type Middleware interface {
	BeforeAgent(ctx context.Context, event *TurnEvent) error
	BeforeGenerate(ctx context.Context, event *GenerateEvent) error
	AfterGenerate(ctx context.Context, event *GenerateEvent) error
	BeforeTool(ctx context.Context, event *ToolEvent) error
	AfterTool(ctx context.Context, event *ToolEvent) error
	AfterAgent(ctx context.Context, event *TurnEvent) error
	OnError(ctx context.Context, event *ErrorEvent)
}

// NoopMiddleware is an embeddable base that normalizes events and passes
// everything through. Custom middlewares embed it and override the hooks
// they care about.
type NoopMiddleware struct{}

func (NoopMiddleware) BeforeAgent(ctx context.Context, event *TurnEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("before-agent event is required")
	}
	if event.State == nil {
		event.State = map[string]any{}
	}
	return nil
}

func (NoopMiddleware) BeforeGenerate(ctx context.Context, event *GenerateEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("before-generate event is required")
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = time.Now().UTC()
	}
	if event.FinishedAt.IsZero() {
		event.FinishedAt = event.StartedAt
	}
	if event.Request == nil {
		event.Request = &types.Request{}
	}
	return nil
}

func (NoopMiddleware) AfterGenerate(ctx context.Context, event *GenerateEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("after-generate event is required")
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = time.Now().UTC()
	}
	if event.FinishedAt.IsZero() {
		event.FinishedAt = time.Now().UTC()
	}
	if event.Request == nil {
		event.Request = &types.Request{}
	}
	return nil
}

func (NoopMiddleware) BeforeTool(ctx context.Context, event *ToolEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("before-tool event is required")
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = time.Now().UTC()
	}
	if event.FinishedAt.IsZero() {
		event.FinishedAt = event.StartedAt
	}
	if event.ToolCall == nil {
		event.ToolCall = &types.ToolCall{}
	}
	return nil
}

func (NoopMiddleware) AfterTool(ctx context.Context, event *ToolEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("after-tool event is required")
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = time.Now().UTC()
	}
	if event.FinishedAt.IsZero() {
		event.FinishedAt = time.Now().UTC()
	}
	if event.ToolCall == nil {
		event.ToolCall = &types.ToolCall{}
	}
	return nil
}

func (NoopMiddleware) AfterAgent(ctx context.Context, event *TurnEvent) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if event == nil {
		return fmt.Errorf("after-agent event is required")
	}
	return nil
}

func (NoopMiddleware) OnError(ctx context.Context, event *ErrorEvent) {
	if event == nil {
		return
	}
	if event.Stage == "" {
		event.Stage = "unknown"
	}
	if event.Err == nil && ctx != nil && ctx.Err() != nil {
		event.Err = ctx.Err()
	}
}

// TurnEvent wraps an entire agent invocation. Messages and State point at
// the live run data so turn hooks can rewrite them.
type TurnEvent struct {
	RunID        string
	ThreadID     string
	Provider     string
	Messages     *[]types.Message
	State        map[string]any
	ContextValue any
}

// GenerateEvent wraps a single model call. Request is live and mutable;
// setting Override routes this one call to a different provider.
type GenerateEvent struct {
	RunID        string
	ThreadID     string
	Provider     string
	Iteration    int
	StartedAt    time.Time
	FinishedAt   time.Time
	Request      *types.Request
	Response     *types.Response
	State        map[string]any
	ContextValue any
	Override     llm.Provider
}

type ToolEvent struct {
	RunID        string
	ThreadID     string
	Provider     string
	Iteration    int
	StartedAt    time.Time
	FinishedAt   time.Time
	ToolCall     *types.ToolCall
	Result       *types.Message
	ToolError    error
	State        map[string]any
	ContextValue any
}

type ErrorEvent struct {
	RunID     string
	ThreadID  string
	Provider  string
	Iteration int
	Stage     string
	ToolName  string
	Err       error
}
