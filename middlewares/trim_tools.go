package middlewares

import (
	"context"

	"github.com/chainguard-dev/clog"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/types"
)

// TrimTools removes finished tool traffic (assistant tool-call turns and
// their tool results) from the transcript at the start of each invocation,
// keeping threads lean for chat-heavy agents that do not need old tool
// output. The trimmed transcript is what gets checkpointed.
type TrimTools struct {
	agent.NoopMiddleware

	// KeepLast preserves tool traffic from the most recent N messages.
	KeepLast int

	cm *agent.ContextManager
}

func NewTrimTools(keepLast int) *TrimTools {
	return &TrimTools{KeepLast: keepLast, cm: agent.NewContextManager(0)}
}

func (m *TrimTools) BeforeAgent(ctx context.Context, event *agent.TurnEvent) error {
	if err := m.NoopMiddleware.BeforeAgent(ctx, event); err != nil {
		return err
	}
	if event.Messages == nil {
		return nil
	}
	msgs := *event.Messages
	protected := len(msgs) - m.KeepLast
	if protected < 0 {
		protected = 0
	}

	kept := make([]types.Message, 0, len(msgs))
	removed := 0
	for i, msg := range msgs {
		if i < protected && isToolTraffic(msg) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	if removed > 0 {
		// The keep boundary can split a tool-call block; normalizing drops
		// tool results whose assistant call turn was trimmed away.
		if m.cm == nil {
			m.cm = agent.NewContextManager(0)
		}
		*event.Messages = m.cm.Normalize(kept)
		clog.FromContext(ctx).Debugf("trimmed %d tool messages from thread", removed)
	}
	return nil
}

func isToolTraffic(msg types.Message) bool {
	if msg.Role == types.RoleTool {
		return true
	}
	return msg.Role == types.RoleAssistant && len(msg.ToolCalls) > 0
}
