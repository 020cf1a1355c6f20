// Package mcp implements the mcp step (spec.md §6): an external-collaborator
// call to a remote tool via internal/mcpclient, storing the tool's result
// under result_key: decoded JSON when the result text parses as JSON,
// otherwise the raw text.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aledsdavies/reciperun/internal/mcpclient"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is mcp's wire-level schema.
type Config struct {
	Server    mcpclient.ServerConfig
	ToolName  string
	Arguments map[string]any
	ResultKey string
}

type factory struct{}

// Factory is the step.Factory for mcp, registered into the step registry
// passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"server", "tool_name", "arguments"},
		"properties": map[string]any{
			"server":     map[string]any{"type": "object"},
			"tool_name":  map[string]any{"type": "string", "minLength": 1},
			"arguments":  map[string]any{"type": "object"},
			"result_key": map[string]any{"type": "string"},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{ResultKey: "tool_result"}

	serverRaw, _ := config["server"].(map[string]any)
	server, err := parseServerConfig(serverRaw)
	if err != nil {
		return nil, &step.ConfigError{StepType: "mcp", Field: "server", Cause: err}
	}
	cfg.Server = server

	if v, ok := config["tool_name"].(string); ok {
		cfg.ToolName = v
	}
	if v, ok := config["arguments"].(map[string]any); ok {
		cfg.Arguments = v
	}
	if v, ok := config["result_key"].(string); ok && v != "" {
		cfg.ResultKey = v
	}

	return &mcpStep{cfg: cfg}, nil
}

// parseServerConfig distinguishes the HTTP config ({url, headers?}) from
// the stdio config ({command, args?, env?, working_dir?}) by key presence
// (spec.md §6).
func parseServerConfig(raw map[string]any) (mcpclient.ServerConfig, error) {
	if url, ok := raw["url"].(string); ok {
		headers := map[string]string{}
		if h, ok := raw["headers"].(map[string]any); ok {
			for k, v := range h {
				headers[k] = fmt.Sprintf("%v", v)
			}
		}
		return mcpclient.ServerConfig{HTTP: &mcpclient.HTTPConfig{URL: url, Headers: headers}}, nil
	}
	if command, ok := raw["command"].(string); ok {
		var args []string
		if a, ok := raw["args"].([]any); ok {
			for _, v := range a {
				args = append(args, fmt.Sprintf("%v", v))
			}
		}
		var env []string
		if e, ok := raw["env"].(map[string]any); ok {
			for k, v := range e {
				env = append(env, fmt.Sprintf("%s=%v", k, v))
			}
		}
		workingDir, _ := raw["working_dir"].(string)
		return mcpclient.ServerConfig{Stdio: &mcpclient.StdioConfig{Command: command, Args: args, Env: env, WorkingDir: workingDir}}, nil
	}
	return mcpclient.ServerConfig{}, fmt.Errorf("server must be an http config ({url, ...}) or a stdio config ({command, ...})")
}

// dial is a package-level seam over mcpclient.Dial (the net.Dial pattern),
// overridden in tests to avoid spawning real subprocesses/connections.
var dial = mcpclient.Dial

type mcpStep struct {
	cfg Config
}

func (s *mcpStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	renderer := rt.Renderer()

	rendered, err := renderer.Render(s.cfg.Arguments, rc.Snapshot(), true)
	if err != nil {
		return err
	}
	arguments, _ := rendered.(map[string]any)

	client, err := dial(ctx, s.cfg.Server)
	if err != nil {
		return err
	}
	defer client.Close()

	resultText, err := client.CallTool(ctx, s.cfg.ToolName, arguments)
	if err != nil {
		return err
	}

	var decoded any
	if err := json.Unmarshal([]byte(resultText), &decoded); err == nil {
		rc.Set(s.cfg.ResultKey, decoded)
	} else {
		rc.Set(s.cfg.ResultKey, resultText)
	}
	return nil
}
