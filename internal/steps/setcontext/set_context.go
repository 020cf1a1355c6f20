// Package setcontext implements the set_context step (spec.md §4.F):
// context mutation with overwrite-or-shallow-merge semantics.
package setcontext

import (
	"context"

	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is set_context's wire-level schema (spec.md §4.F).
type Config struct {
	Key          string `json:"key"`
	Value        any    `json:"value"`
	NestedRender bool   `json:"nested_render"`
	IfExists     string `json:"if_exists"` // "overwrite" (default) | "merge"
}

type factory struct{}

// Factory is the step.Factory for set_context, registered into the step
// registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"key", "value"},
		"properties": map[string]any{
			"key":           map[string]any{"type": "string", "minLength": 1},
			"value":         map[string]any{},
			"nested_render": map[string]any{"type": "boolean"},
			"if_exists":     map[string]any{"type": "string", "enum": []any{"overwrite", "merge"}},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{IfExists: "overwrite"}
	if v, ok := config["key"].(string); ok {
		cfg.Key = v
	}
	cfg.Value = config["value"]
	if v, ok := config["nested_render"].(bool); ok {
		cfg.NestedRender = v
	}
	if v, ok := config["if_exists"].(string); ok && v != "" {
		cfg.IfExists = v
	}
	return &setContextStep{cfg: cfg}, nil
}

type setContextStep struct {
	cfg Config
}

func (s *setContextStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	rendered, err := rt.Renderer().Render(s.cfg.Value, rc.Snapshot(), s.cfg.NestedRender)
	if err != nil {
		return err
	}

	if s.cfg.IfExists == "merge" && rc.Contains(s.cfg.Key) {
		rc.Merge(s.cfg.Key, rendered)
		return nil
	}
	rc.Set(s.cfg.Key, rendered)
	return nil
}
