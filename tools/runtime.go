package tools

import (
	"context"
	"sync"
)

type runtimeKey struct{}

// Runtime is the surface a tool sees while executing inside an agent run:
// identifiers, read access to the conversation state, the per-invocation
// context value, and SetState for accumulating a state delta that the
// runtime merges into the thread state after the tool returns.
type Runtime struct {
	runID      string
	threadID   string
	toolCallID string
	contextVal any

	mu    sync.Mutex
	state map[string]any
	delta map[string]any
}

// NewRuntime snapshots the given state for one tool execution. The agent
// loop constructs this; tools only read it via RuntimeFromContext.
func NewRuntime(runID, threadID, toolCallID string, contextVal any, state map[string]any) *Runtime {
	snapshot := make(map[string]any, len(state))
	for k, v := range state {
		snapshot[k] = v
	}
	return &Runtime{
		runID:      runID,
		threadID:   threadID,
		toolCallID: toolCallID,
		contextVal: contextVal,
		state:      snapshot,
		delta:      map[string]any{},
	}
}

func (r *Runtime) RunID() string      { return r.runID }
func (r *Runtime) ThreadID() string   { return r.threadID }
func (r *Runtime) ToolCallID() string { return r.toolCallID }

// ContextValue returns the read-only per-invocation context the caller
// attached to the run. Tools type-assert it to their own schema.
func (r *Runtime) ContextValue() any { return r.contextVal }

// State returns the conversation state value for key as of tool start,
// including deltas already recorded by this tool.
func (r *Runtime) State(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.delta[key]; ok {
		return v, true
	}
	v, ok := r.state[key]
	return v, ok
}

// StateKeys lists the keys visible to this tool, deltas included.
func (r *Runtime) StateKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.state)+len(r.delta))
	out := make([]string, 0, len(r.state)+len(r.delta))
	for k := range r.state {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range r.delta {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// SetState records a state mutation. Deltas are applied to the thread
// state once the tool returns without error.
func (r *Runtime) SetState(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delta[key] = value
}

// StateDelta returns a copy of the mutations this tool recorded.
func (r *Runtime) StateDelta() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.delta))
	for k, v := range r.delta {
		out[k] = v
	}
	return out
}

// WithRuntime attaches a tool runtime to the context.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFromContext returns the tool runtime for the current execution,
// or nil when the tool is invoked outside an agent run.
func RuntimeFromContext(ctx context.Context) *Runtime {
	rt, _ := ctx.Value(runtimeKey{}).(*Runtime)
	return rt
}
