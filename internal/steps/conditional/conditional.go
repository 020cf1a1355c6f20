// Package conditional implements the conditional step (spec.md §4.F): a
// filter, not a fork. The chosen branch's steps run against the same
// Context the conditional itself received — no clone, no isolation.
package conditional

import (
	"context"
	"fmt"

	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is conditional's wire-level schema (spec.md §4.F/§6): condition is
// either a template/mini-grammar string or a literal bool, and both
// branches are optional — an absent branch makes the step a no-op when
// that branch is chosen.
type Config struct {
	ConditionStr  string
	ConditionBool *bool
	IfTrue        []recipe.StepSpec
	IfFalse       []recipe.StepSpec
}

type factory struct{}

// Factory is the step.Factory for conditional, registered into the step
// registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"condition"},
		"properties": map[string]any{
			"condition": map[string]any{"type": []any{"string", "boolean"}},
			"if_true":   map[string]any{"type": "object"},
			"if_false":  map[string]any{"type": "object"},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{}
	switch v := config["condition"].(type) {
	case string:
		cfg.ConditionStr = v
	case bool:
		cfg.ConditionBool = &v
	default:
		return nil, &step.ConfigError{StepType: "conditional", Field: "condition", Cause: fmt.Errorf("condition must be a string or a bool, got %T", v)}
	}

	ifTrue, err := branchSteps(config["if_true"])
	if err != nil {
		return nil, &step.ConfigError{StepType: "conditional", Field: "if_true", Cause: err}
	}
	cfg.IfTrue = ifTrue

	ifFalse, err := branchSteps(config["if_false"])
	if err != nil {
		return nil, &step.ConfigError{StepType: "conditional", Field: "if_false", Cause: err}
	}
	cfg.IfFalse = ifFalse

	return &conditionalStep{cfg: cfg}, nil
}

// branchSteps parses an optional { "steps": [...] } branch object. A nil
// or absent raw value is a valid empty (no-op) branch.
func branchSteps(raw any) ([]recipe.StepSpec, error) {
	if raw == nil {
		return nil, nil
	}
	branch, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("branch must be an object with a \"steps\" array, got %T", raw)
	}
	stepsRaw, _ := branch["steps"].([]any)
	return recipe.ParseSteps(stepsRaw)
}

type conditionalStep struct {
	cfg Config
}

func (s *conditionalStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()

	var result bool
	if s.cfg.ConditionBool != nil {
		result = *s.cfg.ConditionBool
	} else {
		rendered, err := rt.Renderer().RenderString(s.cfg.ConditionStr, rc.Snapshot(), false)
		if err != nil {
			return &step.ConditionError{Condition: s.cfg.ConditionStr, Cause: err}
		}
		result, err = Evaluate(rendered)
		if err != nil {
			return &step.ConditionError{Condition: s.cfg.ConditionStr, Cause: err}
		}
	}

	branch := s.cfg.IfFalse
	if result {
		branch = s.cfg.IfTrue
	}
	if len(branch) == 0 {
		return nil
	}
	return rt.RunSteps(ctx, branch, rc)
}
