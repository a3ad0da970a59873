package state

import (
	"time"

	"github.com/relaylabs/agentloop/types"
)

type RunRecord struct {
	RunID       string          `json:"runId"`
	ThreadID    string          `json:"threadId"`
	Provider    string          `json:"provider"`
	Status      string          `json:"status"`
	Input       string          `json:"input"`
	Output      string          `json:"output"`
	Messages    []types.Message `json:"messages,omitempty"`
	Usage       *types.Usage    `json:"usage,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// PendingInterrupt captures tool calls that were paused mid-run awaiting
// external decisions. Actions index into Calls by tool call ID.
type PendingInterrupt struct {
	RunID     string                `json:"runId"`
	Iteration int                   `json:"iteration"`
	Calls     []types.ToolCall      `json:"calls"`
	Actions   []types.ActionRequest `json:"actions"`
}

// CheckpointRecord is a snapshot of a thread: the transcript so far, the
// conversation-scoped state bag, and any interrupt awaiting resolution.
type CheckpointRecord struct {
	ThreadID  string            `json:"threadId"`
	Seq       int               `json:"seq"`
	Messages  []types.Message   `json:"messages,omitempty"`
	State     map[string]any    `json:"state,omitempty"`
	Pending   *PendingInterrupt `json:"pending,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
