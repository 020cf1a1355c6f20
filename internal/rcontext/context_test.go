package rcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	c := New(map[string]any{
		"list": []any{1, 2},
		"nested": map[string]any{
			"a": "b",
		},
	}, nil)

	clone := c.Clone()
	clone.Set("list", []any{99})
	clone.Set("new_key", "value")

	_, err := c.Get("new_key")
	require.Error(t, err, "mutation on clone must not leak to original")

	original, err := c.Get("list")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, original)
}

func TestMergeStringConcatenation(t *testing.T) {
	c := New(map[string]any{"x": "hello"}, nil)
	c.Merge("x", " world")
	v, _ := c.Get("x")
	assert.Equal(t, "hello world", v)
}

func TestMergeSequenceAppendAll(t *testing.T) {
	c := New(map[string]any{"xs": []any{1, 2}}, nil)
	c.Merge("xs", []any{3, 4})
	v, _ := c.Get("xs")
	assert.Equal(t, []any{1, 2, 3, 4}, v)
	assert.Len(t, v, 4, "length must equal sum of input lengths")
}

func TestMergeSequenceAppendOne(t *testing.T) {
	c := New(map[string]any{"xs": []any{1, 2}}, nil)
	c.Merge("xs", 3)
	v, _ := c.Get("xs")
	assert.Equal(t, []any{1, 2, 3}, v)
}

func TestMergeMappingShallowOverwrite(t *testing.T) {
	c := New(map[string]any{"m": map[string]any{"a": 1, "b": 2}}, nil)
	c.Merge("m", map[string]any{"b": 99, "c": 3})
	v, _ := c.Get("m")
	m := v.(map[string]any)
	assert.Equal(t, 1, m["a"])
	assert.Equal(t, 99, m["b"], "new value wins on collision")
	assert.Equal(t, 3, m["c"])
	for k := range m {
		assert.Contains(t, []string{"a", "b", "c"}, k)
	}
}

func TestMergeMismatchedTypesFallsBackToPair(t *testing.T) {
	c := New(map[string]any{"x": "text"}, nil)
	c.Merge("x", 5)
	v, _ := c.Get("x")
	assert.Equal(t, []any{"text", 5}, v)
}

func TestMergeAbsentKeyAssigns(t *testing.T) {
	c := New(nil, nil)
	c.Merge("x", "value")
	v, _ := c.Get("x")
	assert.Equal(t, "value", v)
}

func TestSnapshotFallsBackToConfig(t *testing.T) {
	c := New(map[string]any{"a": "artifact"}, map[string]any{"a": "config", "b": "config-only"})
	snap := c.Snapshot()
	assert.Equal(t, "artifact", snap["a"], "artifacts take priority over config")
	assert.Equal(t, "config-only", snap["b"])
}

func TestContains(t *testing.T) {
	c := New(map[string]any{"a": 1}, nil)
	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
}

func TestCloneSnapshotEqualsOriginal(t *testing.T) {
	c := New(map[string]any{"a": 1}, map[string]any{"b": 2})
	before := c.Snapshot()
	clone := c.Clone()
	after := clone.Snapshot()
	assert.Equal(t, before, after)
}
