package agent

import (
	"strings"

	"github.com/relaylabs/agentloop/types"
)

const (
	// DefaultMaxInputTokens keeps requests comfortably under common
	// provider rate limits while leaving room for tool definitions and the
	// system prompt.
	DefaultMaxInputTokens = 25000

	// English text averages roughly four characters per token.
	charsPerToken = 4
)

// ContextManager performs token-aware trimming of the transcript so long
// conversations keep fitting the provider's input window.
type ContextManager struct {
	maxInputTokens int
}

func NewContextManager(maxTokens int) *ContextManager {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxInputTokens
	}
	return &ContextManager{maxInputTokens: maxTokens}
}

// EstimateTokens is a character-based token heuristic.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

func EstimateMessageTokens(msg types.Message) int {
	tokens := 4 // role and framing overhead
	tokens += EstimateTokens(msg.Content)
	for _, tc := range msg.ToolCalls {
		tokens += 10
		tokens += EstimateTokens(string(tc.Arguments))
	}
	if msg.ToolCallID != "" {
		tokens += 5
	}
	return tokens
}

func EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateMessageTokens(msg)
	}
	return total
}

func estimateToolDefinitionTokens(defs []types.ToolDefinition) int {
	total := 0
	for _, def := range defs {
		total += 10
		total += EstimateTokens(def.Description)
		total += 50 // schema
	}
	return total
}

// ShouldTrim reports whether the transcript would exceed the budget once
// the system prompt and tool definitions are counted.
func (cm *ContextManager) ShouldTrim(messages []types.Message, systemPrompt string, defs []types.ToolDefinition) bool {
	fixed := EstimateTokens(systemPrompt) + estimateToolDefinitionTokens(defs)
	return EstimateMessagesTokens(messages) > cm.maxInputTokens-fixed
}

// TrimMessages drops the oldest messages until the transcript fits the
// budget. The final message always survives, and the result is normalized
// so tool results never outlive the assistant turn that requested them.
func (cm *ContextManager) TrimMessages(messages []types.Message, systemPrompt string, defs []types.ToolDefinition, reserveTokens int) []types.Message {
	if len(messages) == 0 {
		return messages
	}

	fixed := EstimateTokens(systemPrompt) + estimateToolDefinitionTokens(defs) + reserveTokens
	available := cm.maxInputTokens - fixed
	if available <= 0 {
		return cm.Normalize(messages[len(messages)-1:])
	}
	if EstimateMessagesTokens(messages) <= available {
		return cm.Normalize(messages)
	}

	last := messages[len(messages)-1]
	used := EstimateMessageTokens(last)

	var kept []types.Message
	for i := len(messages) - 2; i >= 0; i-- {
		cost := EstimateMessageTokens(messages[i])
		if used+cost > available {
			break
		}
		used += cost
		kept = append([]types.Message{messages[i]}, kept...)
	}
	kept = append(kept, last)
	return cm.Normalize(kept)
}

// Normalize repairs transcript structure after trimming or splicing: a tool
// result must follow its assistant call turn, and call turns with missing
// results are dropped whole.
func (cm *ContextManager) Normalize(messages []types.Message) []types.Message {
	if len(messages) == 0 {
		return messages
	}

	var out []types.Message
	open := map[string]bool{}
	blockStart := -1

	dropOpenBlock := func() {
		if len(open) == 0 {
			return
		}
		if blockStart >= 0 && blockStart <= len(out) {
			out = out[:blockStart]
		}
		open = map[string]bool{}
		blockStart = -1
	}

	for _, msg := range messages {
		switch {
		case msg.Role == types.RoleAssistant && len(msg.ToolCalls) > 0:
			dropOpenBlock()
			blockStart = len(out)
			out = append(out, msg)
			for _, tc := range msg.ToolCalls {
				open[tc.ID] = true
			}
		case msg.Role == types.RoleTool && msg.ToolCallID != "":
			// Orphaned results are skipped.
			if open[msg.ToolCallID] {
				out = append(out, msg)
				delete(open, msg.ToolCallID)
				if len(open) == 0 {
					blockStart = -1
				}
			}
		default:
			dropOpenBlock()
			out = append(out, msg)
		}
	}
	dropOpenBlock()
	return out
}

// SummarizeMessages condenses old messages into a single user message so a
// trimmed thread keeps a memory of what happened. Middleware that wants a
// model-written summary layers one on top of this deterministic fallback.
func (cm *ContextManager) SummarizeMessages(messages []types.Message) types.Message {
	if len(messages) == 0 {
		return types.Message{Role: types.RoleUser}
	}

	parts := []string{"[Previous conversation summary]"}
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			if msg.Content != "" {
				parts = append(parts, "User: "+clip(msg.Content, 200))
			}
		case types.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					names = append(names, tc.Name)
				}
				parts = append(parts, "Assistant used tools: "+strings.Join(names, ", "))
			} else if msg.Content != "" {
				parts = append(parts, "Assistant: "+clip(msg.Content, 200))
			}
		}
	}
	parts = append(parts, "[End of summary]")

	return types.Message{
		Role:    types.RoleUser,
		Content: strings.Join(parts, "\n"),
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
