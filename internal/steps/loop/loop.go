// Package loop implements the loop step (spec.md §4.F): iteration over a
// sequence or mapping, sequential or bounded-concurrent, with per-iteration
// context isolation (a fresh clone per item) and input-order result
// aggregation.
//
// Concurrency is grounded on golang.org/x/sync/errgroup's bounded-group
// pattern (SetLimit), the idiomatic Go answer to "N at a time, cancel
// siblings on first failure" that runtime/executor's own goroutine-per-task
// fan-out (ungrouped) does not itself need, since the teacher has no
// equivalent bounded-iteration primitive — an ecosystem addition named in
// DESIGN.md.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is loop's wire-level schema.
type Config struct {
	Items          string
	ItemKey        string
	Substeps       []recipe.StepSpec
	ResultKey      string
	MaxConcurrency int
	DelaySeconds   float64
	FailFast       bool
}

type factory struct{}

// Factory is the step.Factory for loop, registered into the step registry
// passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"items", "item_key", "substeps", "result_key"},
		"properties": map[string]any{
			"items":           map[string]any{"type": "string", "minLength": 1},
			"item_key":        map[string]any{"type": "string", "minLength": 1},
			"substeps":        map[string]any{"type": "array"},
			"result_key":      map[string]any{"type": "string", "minLength": 1},
			"max_concurrency": map[string]any{"type": "integer", "minimum": 0},
			"delay":           map[string]any{"type": "number", "minimum": 0},
			"fail_fast":       map[string]any{"type": "boolean"},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{MaxConcurrency: 1, FailFast: true}
	if v, ok := config["items"].(string); ok {
		cfg.Items = v
	}
	if v, ok := config["item_key"].(string); ok {
		cfg.ItemKey = v
	}
	if v, ok := config["result_key"].(string); ok {
		cfg.ResultKey = v
	}
	if cfg.ResultKey == "" {
		return nil, &step.ConfigError{StepType: "loop", Field: "result_key", Cause: fmt.Errorf("result_key is required")}
	}
	if v, ok := config["max_concurrency"].(float64); ok {
		cfg.MaxConcurrency = int(v)
	}
	if v, ok := config["delay"].(float64); ok {
		cfg.DelaySeconds = v
	}
	if v, ok := config["fail_fast"].(bool); ok {
		cfg.FailFast = v
	} else {
		cfg.FailFast = true
	}

	substepsRaw, _ := config["substeps"].([]any)
	substeps, err := recipe.ParseSteps(substepsRaw)
	if err != nil {
		return nil, &step.ConfigError{StepType: "loop", Field: "substeps", Cause: err}
	}
	cfg.Substeps = substeps

	return &loopStep{cfg: cfg}, nil
}

type loopStep struct {
	cfg Config
}

// iterationError is recorded per item in "<result_key>__errors" when
// fail_fast is false.
type iterationError struct {
	Item  any    `json:"item"`
	Error string `json:"error"`
}

func (s *loopStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	items, err := resolveItems(s.cfg.Items, rc, rt)
	if err != nil {
		return &step.ConfigError{StepType: "loop", Field: "items", Cause: err}
	}

	if len(items) == 0 {
		rc.Set(s.cfg.ResultKey, []any{})
		return nil
	}

	results := make([]any, len(items))
	succeeded := make([]bool, len(items))
	errs := make([]*iterationError, len(items))

	limit := s.cfg.MaxConcurrency
	if limit == 1 {
		for i, item := range items {
			result, err := s.runIteration(ctx, rt, item)
			if err != nil {
				if s.cfg.FailFast {
					return &step.SubstepError{Index: i, Item: item, Cause: err}
				}
				errs[i] = &iterationError{Item: item, Error: err.Error()}
				continue
			}
			results[i] = result
			succeeded[i] = true
		}
	} else {
		iterCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, gctx := errgroup.WithContext(iterCtx)
		if limit > 0 {
			g.SetLimit(limit)
		}

		for i, item := range items {
			i, item := i, item
			if s.cfg.DelaySeconds > 0 && i > 0 {
				select {
				case <-time.After(time.Duration(s.cfg.DelaySeconds * float64(time.Second))):
				case <-gctx.Done():
					break
				}
			}
			g.Go(func() error {
				result, err := s.runIteration(gctx, rt, item)
				if err != nil {
					if s.cfg.FailFast {
						return &step.SubstepError{Index: i, Item: item, Cause: err}
					}
					errs[i] = &iterationError{Item: item, Error: err.Error()}
					return nil
				}
				results[i] = result
				succeeded[i] = true
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	if !s.cfg.FailFast {
		var collected []any
		for _, e := range errs {
			if e != nil {
				collected = append(collected, map[string]any{"item": e.Item, "error": e.Error})
			}
		}
		if collected != nil {
			rc.Set(s.cfg.ResultKey+"__errors", collected)
		}
	}

	// Only successful iterations contribute to result_key, in input order
	// (spec.md §8 invariant 3: the result list's length is input count minus
	// error count, with no placeholder holes for failed items).
	successful := make([]any, 0, len(items))
	for i, ok := range succeeded {
		if ok {
			successful = append(successful, results[i])
		}
	}
	rc.Set(s.cfg.ResultKey, successful)
	return nil
}

// runIteration clones the parent context, binds item under item_key, runs
// substeps sequentially against the clone, and returns the clone's full
// artifact set, minus the item_key binding, as the per-item result (spec.md §4.F's "whole clone's
// artifacts-as-mapping" policy — chosen over a single conventional output
// key because substeps are free to write any number of named outputs and a
// fixed key name would silently drop the rest).
func (s *loopStep) runIteration(ctx context.Context, rt step.Runtime, item any) (any, error) {
	clone := rt.Context().Clone()
	clone.Set(s.cfg.ItemKey, item)

	if err := rt.RunSteps(ctx, s.cfg.Substeps, clone); err != nil {
		return nil, err
	}
	artifacts := clone.Artifacts()
	delete(artifacts, s.cfg.ItemKey)
	return artifacts, nil
}

// resolveItems implements spec.md §4.F step 1: items names a dotted artifact
// path resolving to a sequence or mapping, or failing that is parsed as a
// JSON literal. Mapping iteration yields {key, value} pairs.
func resolveItems(items string, rc *rcontext.Context, rt step.Runtime) ([]any, error) {
	rendered, err := rt.Renderer().RenderString(items, rc.Snapshot(), false)
	if err == nil && rendered != items {
		items = rendered
	}

	if v, ok := lookupDotted(rc.Snapshot(), items); ok {
		return toItemList(v)
	}

	var literal any
	if err := json.Unmarshal([]byte(items), &literal); err != nil {
		return nil, fmt.Errorf("items %q is neither a known artifact path nor valid JSON: %w", items, err)
	}
	return toItemList(literal)
}

func toItemList(v any) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		out := make([]any, 0, len(t))
		for k, val := range t {
			out = append(out, map[string]any{"key": k, "value": val})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("items must resolve to a sequence or mapping, got %T", v)
	}
}

// lookupDotted walks a dotted path ("a.b.c") through nested maps.
func lookupDotted(root map[string]any, path string) (any, bool) {
	var current any = root
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			segment := path[start:i]
			if segment == "" {
				return nil, false
			}
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := m[segment]
			if !ok {
				return nil, false
			}
			current = v
			start = i + 1
		}
	}
	return current, true
}
