// Package parallel implements the parallel step (spec.md §4.F): independent
// fan-out, each substep list on its own clone, fail-fast with sibling
// cancellation, and no merge-back into the parent context.
package parallel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is parallel's wire-level schema.
type Config struct {
	Substeps       []recipe.StepSpec
	MaxConcurrency int
	DelaySeconds   float64
}

type factory struct{}

// Factory is the step.Factory for parallel, registered into the step
// registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"substeps"},
		"properties": map[string]any{
			"substeps":        map[string]any{"type": "array"},
			"max_concurrency": map[string]any{"type": "integer", "minimum": 0},
			"delay":           map[string]any{"type": "number", "minimum": 0},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{MaxConcurrency: 0}
	if v, ok := config["max_concurrency"].(float64); ok {
		cfg.MaxConcurrency = int(v)
	}
	if v, ok := config["delay"].(float64); ok {
		cfg.DelaySeconds = v
	}

	substepsRaw, _ := config["substeps"].([]any)
	substeps, err := recipe.ParseSteps(substepsRaw)
	if err != nil {
		return nil, &step.ConfigError{StepType: "parallel", Field: "substeps", Cause: err}
	}
	cfg.Substeps = substeps

	return &parallelStep{cfg: cfg}, nil
}

type parallelStep struct {
	cfg Config
}

// Execute runs each configured substep as its own independent branch: one
// clone of the parent context per branch (not one clone shared across all
// substeps — spec.md §4.F treats each entry of `substeps` as a distinct unit
// of fan-out work, mirroring loop's per-item isolation).
func (s *parallelStep) Execute(ctx context.Context, rt step.Runtime) error {
	if len(s.cfg.Substeps) == 0 {
		return nil
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(groupCtx)
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}

	for i, spec := range s.cfg.Substeps {
		i, spec := i, spec
		if s.cfg.DelaySeconds > 0 && i > 0 {
			select {
			case <-time.After(time.Duration(s.cfg.DelaySeconds * float64(time.Second))):
			case <-gctx.Done():
			}
		}
		g.Go(func() error {
			clone := rt.Context().Clone()
			if err := rt.RunSteps(gctx, []recipe.StepSpec{spec}, clone); err != nil {
				return &step.SubstepError{Index: i, Cause: err}
			}
			return nil
		})
	}

	return g.Wait()
}
