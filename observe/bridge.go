package observe

import (
	"github.com/relaylabs/agentloop/types"
)

// FromRuntimeEvent maps a runtime event onto the observe schema.
func FromRuntimeEvent(in types.Event) Event {
	e := Event{
		Timestamp: in.Timestamp,
		RunID:     in.RunID,
		ThreadID:  in.ThreadID,
		Provider:  in.Provider,
		Model:     in.Model,
		ToolName:  in.ToolName,
		Name:      string(in.Type),
		Message:   in.Message,
		Error:     in.Error,
		Attributes: map[string]any{
			"eventType": string(in.Type),
		},
	}
	if in.Iteration > 0 {
		e.Attributes["iteration"] = in.Iteration
	}
	if in.ToolCallID != "" {
		e.Attributes["toolCallId"] = in.ToolCallID
	}

	switch in.Type {
	case types.EventBeforeGenerate, types.EventAfterGenerate:
		e.Kind = KindProvider
	case types.EventBeforeTool, types.EventAfterTool:
		e.Kind = KindTool
	case types.EventRunStarted, types.EventRunInterrupted, types.EventRunResumed,
		types.EventRunCompleted, types.EventRunFailed:
		e.Kind = KindRun
	default:
		e.Kind = KindCustom
	}

	switch in.Type {
	case types.EventRunStarted, types.EventBeforeGenerate, types.EventBeforeTool:
		e.Status = StatusStarted
	case types.EventRunFailed:
		e.Status = StatusFailed
	default:
		e.Status = StatusCompleted
	}
	if in.Error != "" {
		e.Status = StatusFailed
	}

	e.Normalize()
	return e
}
