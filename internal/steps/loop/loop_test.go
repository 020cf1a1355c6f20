package loop

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/template"
)

// recordingRuntime runs substeps for real against whatever target Context it
// is given, by directly invoking a fixed substep behavior (set "out" to
// item's "id" field, or fail when item == "boom"). This is enough to
// exercise loop's isolation/ordering/error-collection contracts without a
// registry.
type recordingRuntime struct {
	mu       sync.Mutex
	ctx      *rcontext.Context
	renderer *template.Renderer
}

func (r *recordingRuntime) Context() *rcontext.Context   { return r.ctx }
func (r *recordingRuntime) Renderer() *template.Renderer { return r.renderer }
func (r *recordingRuntime) RunRecipe(context.Context, any, *rcontext.Context) error { return nil }

func (r *recordingRuntime) RunSteps(_ context.Context, specs []recipe.StepSpec, target *rcontext.Context) error {
	for _, spec := range specs {
		item, _ := target.Get("item")
		m, _ := item.(map[string]any)
		if m != nil && m["id"] == "boom" {
			return fmt.Errorf("boom")
		}
		_ = spec
		id := fmt.Sprintf("%v", m["id"])
		target.Set("out", id)
	}
	return nil
}

var _ step.Runtime = (*recordingRuntime)(nil)

func items(ids ...string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{"id": id}
	}
	return out
}

func TestLoopSequentialPreservesOrder(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": items("a", "b", "c")}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":      "items",
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "noop"}},
		"result_key": "results",
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	results, err := rc.Get("results")
	require.NoError(t, err)
	list := results.([]any)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].(map[string]any)["out"])
	assert.Equal(t, "b", list[1].(map[string]any)["out"])
	assert.Equal(t, "c", list[2].(map[string]any)["out"])
}

func TestLoopConcurrentPreservesInputOrder(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": items("a", "b", "c", "d", "e")}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":           "items",
		"item_key":        "item",
		"substeps":        []any{map[string]any{"type": "noop"}},
		"result_key":      "results",
		"max_concurrency": float64(3),
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	results, _ := rc.Get("results")
	list := results.([]any)
	require.Len(t, list, 5)
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, want, list[i].(map[string]any)["out"])
	}
}

func TestLoopIsolationCloneNotVisibleInParent(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": items("a")}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":      "items",
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "noop"}},
		"result_key": "results",
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	assert.False(t, rc.Contains("item"), "item_key must not leak into the parent context")
	assert.False(t, rc.Contains("out"), "substep writes must not leak into the parent context")
}

func TestLoopFailFastTrueAbortsAndPropagatesSubstepError(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": items("a", "boom", "c")}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":      "items",
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "noop"}},
		"result_key": "results",
	})
	require.NoError(t, err)

	err = s.Execute(context.Background(), rt)
	require.Error(t, err)
	var subErr *step.SubstepError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 1, subErr.Index)
}

func TestLoopFailFastFalseCollectsErrors(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": items("a", "boom", "c")}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":      "items",
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "noop"}},
		"result_key": "results",
		"fail_fast":  false,
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	errsVal, err := rc.Get("results__errors")
	require.NoError(t, err)
	errsList := errsVal.([]any)
	require.Len(t, errsList, 1)

	results, _ := rc.Get("results")
	list := results.([]any)
	require.Len(t, list, 2, "result_key holds only successful iterations, no placeholder for the failed one")
	assert.Equal(t, "a", list[0].(map[string]any)["out"])
	assert.Equal(t, "c", list[1].(map[string]any)["out"])
}

func TestLoopEmptyItemsYieldsEmptyResult(t *testing.T) {
	rc := rcontext.New(map[string]any{"items": []any{}}, nil)
	rt := &recordingRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"items":      "items",
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "noop"}},
		"result_key": "results",
	})
	require.NoError(t, err)
	require.NoError(t, s.Execute(context.Background(), rt))

	results, err := rc.Get("results")
	require.NoError(t, err)
	assert.Equal(t, []any{}, results)
}

func TestLoopMissingResultKeyIsConfigError(t *testing.T) {
	_, err := factory{}.New(map[string]any{
		"items":    "items",
		"item_key": "item",
		"substeps": []any{map[string]any{"type": "noop"}},
	})
	require.Error(t, err)
	var cfgErr *step.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
