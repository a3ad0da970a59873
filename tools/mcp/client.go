// Package mcp connects the agent to Model Context Protocol servers and
// surfaces their remote tools and prompts through the local tool interface.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relaylabs/agentloop/tools"
	"github.com/relaylabs/agentloop/types"
)

// Client wraps one MCP server connection.
type Client struct {
	mc         *mcpclient.Client
	serverName string
}

// ConnectStdio launches an MCP server as a subprocess and speaks the
// protocol over its stdin/stdout.
func ConnectStdio(ctx context.Context, command string, env []string, args ...string) (*Client, error) {
	mc, err := mcpclient.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("start mcp server %q: %w", command, err)
	}
	return initialize(ctx, mc)
}

// ConnectStreamableHTTP connects to an MCP server over streamable HTTP.
func ConnectStreamableHTTP(ctx context.Context, baseURL string) (*Client, error) {
	mc, err := mcpclient.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("dial mcp server %s: %w", baseURL, err)
	}
	if err := mc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp transport: %w", err)
	}
	return initialize(ctx, mc)
}

func initialize(ctx context.Context, mc *mcpclient.Client) (*Client, error) {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentloop", Version: "1.0.0"}

	res, err := mc.Initialize(ctx, initReq)
	if err != nil {
		_ = mc.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}
	return &Client{mc: mc, serverName: res.ServerInfo.Name}, nil
}

// ServerName reports the name the server announced during initialization.
func (c *Client) ServerName() string { return c.serverName }

func (c *Client) Close() error { return c.mc.Close() }

// Tools lists the server's tools wrapped as local tools; executing one
// forwards the call over the MCP session.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	listed, err := c.mc.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}

	out := make([]tools.Tool, 0, len(listed.Tools))
	for _, remote := range listed.Tools {
		out = append(out, &remoteTool{client: c, def: types.ToolDefinition{
			Name:        remote.Name,
			Description: remote.Description,
			JSONSchema:  schemaToMap(remote.InputSchema),
		}})
	}
	return out, nil
}

// Prompt fetches a named prompt from the server and flattens its messages
// into a single system prompt string.
func (c *Client) Prompt(ctx context.Context, name string, args map[string]string) (string, error) {
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.mc.GetPrompt(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get mcp prompt %q: %w", name, err)
	}

	var parts []string
	for _, msg := range res.Messages {
		if text, ok := mcp.AsTextContent(msg.Content); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

type remoteTool struct {
	client *Client
	def    types.ToolDefinition
}

func (t *remoteTool) Definition() types.ToolDefinition { return t.def }

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, fmt.Errorf("mcp tool %s: decode arguments: %w", t.def.Name, err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.def.Name
	req.Params.Arguments = decoded

	res, err := t.client.mc.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call mcp tool %s: %w", t.def.Name, err)
	}

	text := flattenContent(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("mcp tool %s: %s", t.def.Name, text)
	}
	return text, nil
}

func flattenContent(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if text, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
