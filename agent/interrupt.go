package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relaylabs/agentloop/types"
)

// InterruptError is returned from a BeforeTool hook to halt the run before
// the call executes. The gated call is written to the thread checkpoint and
// surfaced on RunResult.Interrupt; Resume picks it back up.
type InterruptError struct {
	// Description is shown to whoever reviews the pending action.
	Description string
}

func (e *InterruptError) Error() string {
	if e.Description == "" {
		return "tool call requires approval"
	}
	return "tool call requires approval: " + e.Description
}

// Interrupt constructs an InterruptError. Middlewares use it from BeforeTool.
func Interrupt(format string, args ...any) *InterruptError {
	return &InterruptError{Description: fmt.Sprintf(format, args...)}
}

func asInterrupt(err error) (*InterruptError, bool) {
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// DecisionKind selects how a pending tool call is resolved on resume.
type DecisionKind string

const (
	// DecisionApprove executes the call exactly as the model issued it.
	DecisionApprove DecisionKind = "approve"
	// DecisionReject skips execution and feeds Reason back as the tool result.
	DecisionReject DecisionKind = "reject"
	// DecisionEdit replaces the call's name and/or arguments, then executes.
	DecisionEdit DecisionKind = "edit"
)

// Decision resolves one pending action by tool-call ID.
type Decision struct {
	ToolCallID string
	Kind       DecisionKind

	// Reason is sent to the model as the tool message for a rejected call.
	Reason string

	// Tool and Arguments override the original call for DecisionEdit.
	// Empty fields keep the original value.
	Tool      string
	Arguments string
}

// Approve resolves a pending call as-issued.
func Approve(toolCallID string) Decision {
	return Decision{ToolCallID: toolCallID, Kind: DecisionApprove}
}

// Reject skips a pending call; reason becomes the tool result text.
func Reject(toolCallID, reason string) Decision {
	return Decision{ToolCallID: toolCallID, Kind: DecisionReject, Reason: reason}
}

// Edit rewrites a pending call before execution. Pass "" to keep the
// original tool name or arguments.
func Edit(toolCallID, tool, arguments string) Decision {
	return Decision{ToolCallID: toolCallID, Kind: DecisionEdit, Tool: tool, Arguments: arguments}
}

func applyDecision(call types.ToolCall, d Decision) (types.ToolCall, error) {
	switch d.Kind {
	case DecisionApprove:
		return call, nil
	case DecisionEdit:
		if d.Tool != "" {
			call.Name = d.Tool
		}
		if d.Arguments != "" {
			call.Arguments = json.RawMessage(d.Arguments)
		}
		return call, nil
	case DecisionReject:
		return call, nil
	default:
		return call, fmt.Errorf("unknown decision kind %q for tool call %s", d.Kind, d.ToolCallID)
	}
}
