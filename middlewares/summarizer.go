package middlewares

import (
	"context"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/relaylabs/agentloop/agent"
	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/types"
)

const (
	defaultSummaryTriggerTokens = 4000
	defaultSummaryKeepMessages  = 6

	summarySystemPrompt = "You compress conversation history. Write a concise summary of the " +
		"conversation below, preserving facts, decisions, names and open questions. " +
		"Reply with the summary only."
)

// Summarizer watches transcript size before each model call; past the token
// threshold it replaces all but the most recent messages with a single
// summary message. When a provider is configured the summary is
// model-written, otherwise a deterministic digest is used.
type Summarizer struct {
	agent.NoopMiddleware
	provider llm.Provider
	model    string
	trigger  int
	keep     int
	cm       *agent.ContextManager
}

type SummarizerOption func(*Summarizer)

// WithSummaryProvider has the summary written by a model instead of the
// deterministic digest.
func WithSummaryProvider(p llm.Provider, model string) SummarizerOption {
	return func(s *Summarizer) {
		s.provider = p
		s.model = model
	}
}

// WithTriggerTokens sets the estimated token count that starts summarizing.
func WithTriggerTokens(n int) SummarizerOption {
	return func(s *Summarizer) {
		if n > 0 {
			s.trigger = n
		}
	}
}

// WithKeepMessages sets how many recent messages survive untouched.
func WithKeepMessages(n int) SummarizerOption {
	return func(s *Summarizer) {
		if n > 0 {
			s.keep = n
		}
	}
}

func NewSummarizer(opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{
		trigger: defaultSummaryTriggerTokens,
		keep:    defaultSummaryKeepMessages,
		cm:      agent.NewContextManager(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (m *Summarizer) BeforeGenerate(ctx context.Context, event *agent.GenerateEvent) error {
	if err := m.NoopMiddleware.BeforeGenerate(ctx, event); err != nil {
		return err
	}
	msgs := event.Request.Messages
	if len(msgs) <= m.keep {
		return nil
	}
	if agent.EstimateMessagesTokens(msgs) < m.trigger {
		return nil
	}

	cut := len(msgs) - m.keep
	head := msgs[:cut]
	tail := msgs[cut:]

	summary := m.summarize(ctx, head)
	rebuilt := append([]types.Message{summary}, tail...)
	event.Request.Messages = m.cm.Normalize(rebuilt)
	clog.FromContext(ctx).Infof("summarized %d messages into one (kept %d)", cut, m.keep)
	return nil
}

func (m *Summarizer) summarize(ctx context.Context, head []types.Message) types.Message {
	fallback := m.cm.SummarizeMessages(head)
	if m.provider == nil {
		return fallback
	}

	resp, err := m.provider.Generate(ctx, types.Request{
		Model:        m.model,
		SystemPrompt: summarySystemPrompt,
		Messages: []types.Message{
			{Role: types.RoleUser, Content: renderTranscript(head)},
		},
	})
	if err != nil || resp.Message.Content == "" {
		clog.FromContext(ctx).Warnf("model summary failed, using digest: %v", err)
		return fallback
	}
	return types.Message{
		Role:    types.RoleUser,
		Content: "[Previous conversation summary]\n" + resp.Message.Content,
	}
}

func renderTranscript(msgs []types.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case types.RoleUser:
			sb.WriteString("User: " + m.Content + "\n")
		case types.RoleAssistant:
			if m.Content != "" {
				sb.WriteString("Assistant: " + m.Content + "\n")
			}
			for _, tc := range m.ToolCalls {
				sb.WriteString("Assistant called tool " + tc.Name + "\n")
			}
		case types.RoleTool:
			sb.WriteString("Tool " + m.Name + " returned: " + m.Content + "\n")
		}
	}
	return sb.String()
}
