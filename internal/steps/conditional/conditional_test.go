package conditional

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/template"
)

// fakeRuntime exercises conditional in isolation: RunSteps just records
// which branch and which target Context it was asked to run, without
// actually dispatching to the registry (conditional itself never resolves
// other step types, so its own test has no business depending on them).
type fakeRuntime struct {
	ctx      *rcontext.Context
	renderer *template.Renderer
	ranWith  []recipe.StepSpec
	ranOn    *rcontext.Context
}

func (f *fakeRuntime) Context() *rcontext.Context   { return f.ctx }
func (f *fakeRuntime) Renderer() *template.Renderer { return f.renderer }
func (f *fakeRuntime) RunSteps(_ context.Context, specs []recipe.StepSpec, target *rcontext.Context) error {
	f.ranWith = specs
	f.ranOn = target
	return nil
}
func (f *fakeRuntime) RunRecipe(context.Context, any, *rcontext.Context) error { return nil }

var _ step.Runtime = (*fakeRuntime)(nil)

func TestConditionalRunsIfTrueBranchOnSameContext(t *testing.T) {
	rc := rcontext.New(map[string]any{"status": "ok"}, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": `eq("{{ status }}", "ok")`,
		"if_true":   map[string]any{"steps": []any{map[string]any{"type": "noop"}}},
		"if_false":  map[string]any{"steps": []any{map[string]any{"type": "other"}}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(context.Background(), rt))
	require.Len(t, rt.ranWith, 1)
	assert.Equal(t, "noop", rt.ranWith[0].Type)
	assert.Same(t, rc, rt.ranOn, "conditional must run the chosen branch on the same Context, not a clone")
}

func TestConditionalRunsIfFalseBranchWhenFalse(t *testing.T) {
	rc := rcontext.New(map[string]any{"status": "fail"}, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": `eq("{{ status }}", "ok")`,
		"if_true":   map[string]any{"steps": []any{map[string]any{"type": "noop"}}},
		"if_false":  map[string]any{"steps": []any{map[string]any{"type": "other"}}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(context.Background(), rt))
	require.Len(t, rt.ranWith, 1)
	assert.Equal(t, "other", rt.ranWith[0].Type)
}

func TestConditionalWithNoIfFalseAndFalseConditionIsNoOp(t *testing.T) {
	rc := rcontext.New(nil, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": "false",
		"if_true":   map[string]any{"steps": []any{map[string]any{"type": "noop"}}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(context.Background(), rt))
	assert.Nil(t, rt.ranWith, "no if_false branch configured means nothing should run")
}

func TestConditionalWithNoIfTrueAndTrueConditionIsNoOp(t *testing.T) {
	rc := rcontext.New(nil, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": "true",
		"if_false":  map[string]any{"steps": []any{map[string]any{"type": "other"}}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(context.Background(), rt))
	assert.Nil(t, rt.ranWith, "no if_true branch configured means nothing should run")
}

func TestConditionalAcceptsLiteralBoolCondition(t *testing.T) {
	rc := rcontext.New(nil, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": true,
		"if_true":   map[string]any{"steps": []any{map[string]any{"type": "noop"}}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Execute(context.Background(), rt))
	require.Len(t, rt.ranWith, 1)
	assert.Equal(t, "noop", rt.ranWith[0].Type)
}

func TestConditionalInvalidConditionWrapsConditionError(t *testing.T) {
	rc := rcontext.New(nil, nil)
	rt := &fakeRuntime{ctx: rc, renderer: template.New()}

	s, err := factory{}.New(map[string]any{
		"condition": "bogus(true)",
		"if_true":   map[string]any{"steps": []any{map[string]any{"type": "noop"}}},
	})
	require.NoError(t, err)

	err = s.Execute(context.Background(), rt)
	require.Error(t, err)
	var condErr *step.ConditionError
	require.ErrorAs(t, err, &condErr)
}
