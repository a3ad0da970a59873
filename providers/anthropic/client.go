// Package anthropic adapts the official Anthropic Messages client to the
// provider interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/types"
)

const (
	defaultModel     = anthropic.ModelClaudeSonnet4_20250514
	defaultMaxTokens = 4096
)

type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

type Option func(*Client, *[]option.RequestOption)

func WithModel(model string) Option {
	return func(c *Client, _ *[]option.RequestOption) { c.model = anthropic.Model(model) }
}

func WithAPIKey(apiKey string) Option {
	return func(_ *Client, opts *[]option.RequestOption) {
		if apiKey != "" {
			*opts = append(*opts, option.WithAPIKey(apiKey))
		}
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{model: defaultModel}
	var clientOpts []option.RequestOption
	for _, opt := range opts {
		opt(c, &clientOpts)
	}
	c.client = anthropic.NewClient(clientOpts...)
	return c, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, Streaming: true, StructuredOutput: false}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}

	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return types.Response{}, fmt.Errorf("anthropic message: %w", err)
	}

	out := types.Message{Role: types.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			toolUse := block.AsToolUse()
			args := json.RawMessage(`{}`)
			if raw, err := json.Marshal(toolUse.Input); err == nil && len(raw) > 0 && string(raw) != "null" {
				args = raw
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: args,
			})
		}
	}

	usage := &types.Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
		TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return types.Response{Message: out, Usage: usage, Model: string(resp.Model)}, nil
}

// buildMessages maps the transcript into the Messages API shape: tool
// results ride in user messages as tool_result blocks, and consecutive
// results collapse into one user turn.
func buildMessages(msgs []types.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case types.RoleUser:
			flushResults()
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case types.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					if err := json.Unmarshal(tc.Arguments, &input); err != nil {
						input = string(tc.Arguments)
					}
				} else {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case types.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		}
	}
	flushResults()
	return out
}

func buildTools(defs []types.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := def.JSONSchema["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = requiredFields(def.JSONSchema)
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

// requiredFields tolerates both []string and the []any that a JSON
// round-trip produces.
func requiredFields(schema map[string]any) []string {
	raw, ok := schema["required"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
