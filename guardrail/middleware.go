package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/types"
)

const blockedReply = "I can't help with that request."

// BlockedError aborts the run when an input rule blocks the user message.
type BlockedError struct {
	Rule    string
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("guardrail %q blocked input: %s", e.Rule, e.Message)
}

// Middleware enforces a guardrail pipeline around each model call: input
// rules run against the latest user message, output rules against the
// assistant reply. A blocked input fails the run; a blocked output is
// swapped for a refusal so the conversation survives.
type Middleware struct {
	agent.NoopMiddleware
	pipeline *Pipeline
}

func NewMiddleware(pipeline *Pipeline) *Middleware {
	return &Middleware{pipeline: pipeline}
}

func (m *Middleware) BeforeGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, event); err != nil {
		return err
	}
	if m.pipeline == nil || event.Request == nil {
		return nil
	}
	msgs := event.Request.Messages
	last := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return nil
	}

	text, results, err := m.pipeline.CheckInput(ctx, msgs[last].Content)
	if err != nil {
		return err
	}
	if Blocked(results) {
		return &BlockedError{Rule: results[0].Rule, Message: results[0].Message}
	}
	if len(results) > 0 {
		clog.FromContext(ctx).Warnf("input guardrails triggered: %s", Summary(results))
	}
	if text != msgs[last].Content {
		event.Request.Messages[last].Content = text
	}
	return nil
}

func (m *Middleware) AfterGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.AfterGenerate(ctx, event); err != nil {
		return err
	}
	if m.pipeline == nil || event.Response == nil {
		return nil
	}
	content := strings.TrimSpace(event.Response.Message.Content)
	if content == "" {
		return nil
	}

	text, results, err := m.pipeline.CheckOutput(ctx, content)
	if err != nil {
		return err
	}
	if Blocked(results) {
		clog.FromContext(ctx).Warnf("output blocked by guardrail %q", results[0].Rule)
		event.Response.Message.Content = blockedReply
		return nil
	}
	if len(results) > 0 {
		clog.FromContext(ctx).Warnf("output guardrails triggered: %s", Summary(results))
	}
	if text != content {
		event.Response.Message.Content = text
	}
	return nil
}
