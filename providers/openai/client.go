// Package openai adapts the official OpenAI Chat Completions client to the
// provider interface.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/relaylabs/agentloop/llm"
	"github.com/relaylabs/agentloop/types"
)

const defaultModel = openai.ChatModelGPT4oMini

type Client struct {
	client openai.Client
	model  string
}

type Option func(*Client, *[]option.RequestOption)

func WithModel(model string) Option {
	return func(c *Client, _ *[]option.RequestOption) { c.model = model }
}

func WithAPIKey(apiKey string) Option {
	return func(_ *Client, opts *[]option.RequestOption) {
		if apiKey != "" {
			*opts = append(*opts, option.WithAPIKey(apiKey))
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(_ *Client, opts *[]option.RequestOption) {
		if baseURL != "" {
			*opts = append(*opts, option.WithBaseURL(baseURL))
		}
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{model: defaultModel}
	var clientOpts []option.RequestOption
	for _, opt := range opts {
		opt(c, &clientOpts)
	}
	c.client = openai.NewClient(clientOpts...)
	return c, nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, Streaming: true, StructuredOutput: true}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: buildMessages(req),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return types.Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return types.Response{}, fmt.Errorf("openai response had no choices")
	}

	choice := completion.Choices[0].Message
	out := types.Message{Role: types.RoleAssistant, Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: normalizeArgs(tc.Function.Arguments),
		})
	}

	var usage *types.Usage
	if completion.Usage.TotalTokens > 0 {
		usage = &types.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		}
	}

	return types.Response{Message: out, Usage: usage, Model: completion.Model}, nil
}

func buildMessages(req types.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case types.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(normalizeArgs(string(tc.Arguments))),
					},
				})
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: calls,
			}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case types.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return messages
}

func buildTools(defs []types.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		schema := def.JSONSchema
		if len(schema) == 0 {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return out
}

func normalizeArgs(raw string) []byte {
	if raw == "" {
		return []byte(`{}`)
	}
	return []byte(raw)
}
