// Package executerecipe implements the execute_recipe step (spec.md §4.F):
// sub-recipe composition against the same context, with rendered overrides
// applied before the sub-recipe runs and depth-limited recursion.
package executerecipe

import (
	"context"

	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is execute_recipe's wire-level schema.
type Config struct {
	RecipePath       string
	ContextOverrides map[string]any
}

type factory struct{}

// Factory is the step.Factory for execute_recipe, registered into the
// step registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"recipe_path"},
		"properties": map[string]any{
			"recipe_path":       map[string]any{"type": "string", "minLength": 1},
			"context_overrides": map[string]any{"type": "object"},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{}
	if v, ok := config["recipe_path"].(string); ok {
		cfg.RecipePath = v
	}
	if v, ok := config["context_overrides"].(map[string]any); ok {
		cfg.ContextOverrides = v
	}
	return &executeRecipeStep{cfg: cfg}, nil
}

type executeRecipeStep struct {
	cfg Config
}

func (s *executeRecipeStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	renderer := rt.Renderer()

	path, err := renderer.RenderString(s.cfg.RecipePath, rc.Snapshot(), false)
	if err != nil {
		return err
	}

	for key, value := range s.cfg.ContextOverrides {
		rendered, err := renderer.Render(value, rc.Snapshot(), true)
		if err != nil {
			return err
		}
		rc.Set(key, rendered)
	}

	return rt.RunRecipe(ctx, path, rc)
}
