package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/reciperun/internal/mcpclient"
	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/template"
)

type fakeRuntime struct {
	ctx      *rcontext.Context
	renderer *template.Renderer
}

func (f *fakeRuntime) Context() *rcontext.Context   { return f.ctx }
func (f *fakeRuntime) Renderer() *template.Renderer { return f.renderer }
func (f *fakeRuntime) RunSteps(context.Context, []recipe.StepSpec, *rcontext.Context) error {
	return nil
}
func (f *fakeRuntime) RunRecipe(context.Context, any, *rcontext.Context) error { return nil }

var _ step.Runtime = (*fakeRuntime)(nil)

type fakeClient struct {
	lastTool string
	lastArgs map[string]any
	result   string
	err      error
	closed   bool
}

func (c *fakeClient) CallTool(_ context.Context, toolName string, arguments map[string]any) (string, error) {
	c.lastTool = toolName
	c.lastArgs = arguments
	return c.result, c.err
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func withFakeDial(t *testing.T, c *fakeClient) {
	t.Helper()
	orig := dial
	dial = func(context.Context, mcpclient.ServerConfig) (mcpclient.Client, error) {
		return c, nil
	}
	t.Cleanup(func() { dial = orig })
}

func TestMCPCallsToolAndStoresJSONResult(t *testing.T) {
	fc := &fakeClient{result: `{"ok":true}`}
	withFakeDial(t, fc)

	rc := rcontext.New(map[string]any{"target": "prod"}, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"server":    map[string]any{"command": "mcp-server", "args": []any{"--stdio"}},
		"tool_name": "deploy",
		"arguments": map[string]any{"env": "{{ target }}"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	assert.Equal(t, "deploy", fc.lastTool)
	assert.Equal(t, "prod", fc.lastArgs["env"])
	assert.True(t, fc.closed)

	v, err := rc.Get("tool_result")
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, true, m["ok"])
}

func TestMCPStoresPlainTextResultWhenNotJSON(t *testing.T) {
	fc := &fakeClient{result: "plain text"}
	withFakeDial(t, fc)

	rc := rcontext.New(nil, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"server":    map[string]any{"url": "https://example.invalid/mcp"},
		"tool_name": "lookup",
		"arguments": map[string]any{},
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	v, err := rc.Get("tool_result")
	require.NoError(t, err)
	assert.Equal(t, "plain text", v)
}

func TestMCPDefaultResultKey(t *testing.T) {
	s, err := factory{}.New(map[string]any{
		"server":    map[string]any{"url": "https://example.invalid"},
		"tool_name": "lookup",
		"arguments": map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "tool_result", s.(*mcpStep).cfg.ResultKey)
}

func TestMCPInvalidServerConfigErrors(t *testing.T) {
	_, err := factory{}.New(map[string]any{
		"tool_name": "lookup",
		"arguments": map[string]any{},
	})
	require.Error(t, err)
	var cfgErr *step.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
