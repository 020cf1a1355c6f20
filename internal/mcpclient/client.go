// Package mcpclient wraps github.com/mark3labs/mcp-go's client package
// behind a single transport-agnostic Dial entry point, matching spec.md
// §1's "black-box call_tool" framing for the mcp step: the step itself
// never knows whether it's talking to a stdio subprocess or an SSE server.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ServerConfig is the rendered, decoded form of mcp.server (spec.md §6):
// exactly one of HTTP or Stdio is set.
type ServerConfig struct {
	HTTP  *HTTPConfig
	Stdio *StdioConfig
}

// HTTPConfig dials an SSE MCP server.
type HTTPConfig struct {
	URL     string
	Headers map[string]string
}

// StdioConfig spawns an MCP server subprocess.
type StdioConfig struct {
	Command    string
	Args       []string
	Env        []string
	WorkingDir string
}

// Client is the narrowed surface the mcp step needs: initialize once, call
// a tool, close.
type Client interface {
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error)
	Close() error
}

type wrappedClient struct {
	inner *client.Client
}

// Dial connects to cfg's server and performs the MCP initialize handshake.
func Dial(ctx context.Context, cfg ServerConfig) (Client, error) {
	var c *client.Client
	var err error

	switch {
	case cfg.Stdio != nil:
		c, err = client.NewStdioMCPClient(cfg.Stdio.Command, cfg.Stdio.Env, cfg.Stdio.Args...)
	case cfg.HTTP != nil:
		var opts []client.ClientOption
		if len(cfg.HTTP.Headers) > 0 {
			opts = append(opts, client.WithHeaders(cfg.HTTP.Headers))
		}
		c, err = client.NewSSEMCPClient(cfg.HTTP.URL, opts...)
	default:
		return nil, fmt.Errorf("mcpclient: server config must set exactly one of http or stdio")
	}
	if err != nil {
		return nil, fmt.Errorf("mcpclient: dial: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "reciperun", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcpclient: initialize: %w", err)
	}

	return &wrappedClient{inner: c}, nil
}

func (w *wrappedClient) CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = arguments

	result, err := w.inner.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcpclient: call_tool %q: %w", toolName, err)
	}
	if result.IsError {
		return "", fmt.Errorf("mcpclient: tool %q reported an error result", toolName)
	}

	var texts []string
	for _, content := range result.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if texts != nil {
		joined, err := json.Marshal(texts)
		if err != nil {
			return "", err
		}
		if len(texts) == 1 {
			return texts[0], nil
		}
		return string(joined), nil
	}

	b, err := json.Marshal(result.Content)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (w *wrappedClient) Close() error {
	return w.inner.Close()
}
