package types

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"` // Tool name for tool role messages.
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	JSONSchema  map[string]any `json:"jsonSchema,omitempty"`
}

// Request is the mutable unit a middleware chain operates on before each
// model call. Middlewares may rewrite the model, system prompt, message
// window, or tool list in place.
type Request struct {
	Model           string           `json:"model,omitempty"`
	SystemPrompt    string           `json:"systemPrompt,omitempty"`
	Messages        []Message        `json:"messages"`
	Tools           []ToolDefinition `json:"tools,omitempty"`
	MaxOutputTokens int              `json:"maxOutputTokens,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
	TotalTokens  int `json:"totalTokens,omitempty"`
}

type Response struct {
	Message Message `json:"message"`
	Usage   *Usage  `json:"usage,omitempty"`
	// Model reports the model that actually served the call, which may
	// differ from the request model when middleware rewrote it.
	Model string `json:"model,omitempty"`
}

// ActionRequest describes a tool invocation awaiting an external decision.
type ActionRequest struct {
	ToolCallID  string          `json:"toolCallId"`
	Tool        string          `json:"tool"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Interrupt is attached to a RunResult when a middleware paused the run
// awaiting approval. The run continues via Resume on the same thread.
type Interrupt struct {
	ThreadID string          `json:"threadId"`
	Actions  []ActionRequest `json:"actions"`
}

type RunResult struct {
	Output      string         `json:"output"`
	Messages    []Message      `json:"messages,omitempty"`
	State       map[string]any `json:"state,omitempty"`
	Usage       *Usage         `json:"usage,omitempty"`
	Iterations  int            `json:"iterations"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	RunID       string         `json:"runId,omitempty"`
	ThreadID    string         `json:"threadId,omitempty"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Events      []Event        `json:"events,omitempty"`
	Interrupt   *Interrupt     `json:"interrupt,omitempty"`
}

// Interrupted reports whether the run paused awaiting external decisions.
func (r RunResult) Interrupted() bool {
	return r.Interrupt != nil && len(r.Interrupt.Actions) > 0
}
