package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/relaylabs/agentloop/types"
)

func user(content string) types.Message {
	return types.Message{Role: types.RoleUser, Content: content}
}

func assistant(content string) types.Message {
	return types.Message{Role: types.RoleAssistant, Content: content}
}

func assistantCalls(ids ...string) types.Message {
	msg := types.Message{Role: types.RoleAssistant}
	for _, id := range ids {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID: id, Name: "t", Arguments: json.RawMessage(`{}`),
		})
	}
	return msg
}

func toolResult(id string) types.Message {
	return types.Message{Role: types.RoleTool, Name: "t", ToolCallID: id, Content: "r"}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("empty = %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Fatalf("4 chars = %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Fatalf("5 chars = %d, want 2", got)
	}
}

func TestTrimKeepsLastMessage(t *testing.T) {
	cm := NewContextManager(30)
	messages := []types.Message{
		user(strings.Repeat("a", 400)),
		assistant(strings.Repeat("b", 400)),
		user("the question"),
	}
	trimmed := cm.TrimMessages(messages, "", nil, 0)
	if len(trimmed) != 1 {
		t.Fatalf("trimmed = %d messages", len(trimmed))
	}
	if trimmed[0].Content != "the question" {
		t.Fatalf("kept = %q", trimmed[0].Content)
	}
}

func TestTrimDropsOldestFirst(t *testing.T) {
	cm := NewContextManager(60)
	messages := []types.Message{
		user(strings.Repeat("x", 200)), // too expensive to keep
		assistant("short reply"),
		user("next question"),
	}
	trimmed := cm.TrimMessages(messages, "", nil, 0)
	if len(trimmed) != 2 {
		t.Fatalf("trimmed = %#v", trimmed)
	}
	if trimmed[0].Content != "short reply" || trimmed[1].Content != "next question" {
		t.Fatalf("kept wrong messages: %#v", trimmed)
	}
}

func TestTrimNoopWhenUnderBudget(t *testing.T) {
	cm := NewContextManager(10000)
	messages := []types.Message{user("hi"), assistant("hello")}
	trimmed := cm.TrimMessages(messages, "system", nil, 0)
	if len(trimmed) != 2 {
		t.Fatalf("trimmed = %#v", trimmed)
	}
}

func TestNormalizeDropsOrphanedToolResults(t *testing.T) {
	cm := NewContextManager(0)
	messages := []types.Message{
		toolResult("gone"), // call turn was trimmed away
		user("hi"),
		assistantCalls("c1"),
		toolResult("c1"),
		assistant("done"),
	}
	out := cm.Normalize(messages)
	if len(out) != 4 {
		t.Fatalf("normalized = %#v", out)
	}
	if out[0].Content != "hi" {
		t.Fatalf("first kept = %#v", out[0])
	}
}

func TestNormalizeDropsDanglingCallTurn(t *testing.T) {
	cm := NewContextManager(0)
	messages := []types.Message{
		user("hi"),
		assistantCalls("c1", "c2"),
		toolResult("c1"),
		// c2's result never arrives; the whole block must go.
		user("next"),
	}
	out := cm.Normalize(messages)
	if len(out) != 2 {
		t.Fatalf("normalized = %#v", out)
	}
	if out[0].Content != "hi" || out[1].Content != "next" {
		t.Fatalf("kept = %#v", out)
	}
}

func TestNormalizeKeepsCompleteBlocks(t *testing.T) {
	cm := NewContextManager(0)
	messages := []types.Message{
		user("hi"),
		assistantCalls("c1", "c2"),
		toolResult("c1"),
		toolResult("c2"),
		assistant("done"),
	}
	out := cm.Normalize(messages)
	if len(out) != len(messages) {
		t.Fatalf("normalized = %#v", out)
	}
}

func TestNormalizeDropsTrailingOpenBlock(t *testing.T) {
	cm := NewContextManager(0)
	messages := []types.Message{
		user("hi"),
		assistantCalls("c1"),
	}
	out := cm.Normalize(messages)
	if len(out) != 1 || out[0].Content != "hi" {
		t.Fatalf("normalized = %#v", out)
	}
}

func TestSummarizeMessagesDigest(t *testing.T) {
	cm := NewContextManager(0)
	summary := cm.SummarizeMessages([]types.Message{
		user("plan a trip to Kyoto"),
		assistantCalls("c1"),
		toolResult("c1"),
		assistant(strings.Repeat("long answer ", 40)),
	})
	if summary.Role != types.RoleUser {
		t.Fatalf("role = %q", summary.Role)
	}
	if !strings.HasPrefix(summary.Content, "[Previous conversation summary]") {
		t.Fatalf("content = %q", summary.Content)
	}
	if !strings.Contains(summary.Content, "User: plan a trip to Kyoto") {
		t.Fatalf("missing user line: %q", summary.Content)
	}
	if !strings.Contains(summary.Content, "Assistant used tools: t") {
		t.Fatalf("missing tool line: %q", summary.Content)
	}
	if !strings.Contains(summary.Content, "...") {
		t.Fatalf("expected clipped assistant text: %q", summary.Content)
	}
}
