// Package executor implements the Executor (spec.md §4.E): loading a
// recipe, validating its shape against the registry, and running its steps
// in declaration order against a Context.
//
// Grounded on runtime/executor/executor.go's Execute(ctx, steps, config)
// shape (sequential loop, fail-fast, step-indexed error wrapping,
// telemetry/debug-event accumulation) generalized from the teacher's fixed
// tree-node dispatch to a registry-driven, data-described step list.
package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/template"
)

// DefaultRecursionLimit is execute_recipe's default nesting bound
// (spec.md §4.F).
const DefaultRecursionLimit = 32

// ExecutionError wraps the original cause of a failing step with the step
// index and type (spec.md §7's RecipeExecutionError).
type ExecutionError struct {
	StepIndex int
	StepType  string
	Cause     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("recipe execution failed at step %d (%s): %v", e.StepIndex, e.StepType, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// DebugEvent is a single observability record, in the same shape as the
// teacher's executor.DebugEvent: no structured-logging library appears
// anywhere in the retrieved corpus for this domain, so recording named
// events with a step index and freeform context is the idiomatic answer
// here rather than wiring one in (see DESIGN.md). Events are recorded for
// the top-level step sequence only; nested loop/parallel iterations are
// each too numerous and too concurrent to usefully flatten into one trace.
type DebugEvent struct {
	RunID     string
	Event     string
	StepIndex int
	StepType  string
	Detail    string
}

// ExecutionResult is the top-level Execute return value: the recorded debug
// events plus a per-run correlation id (SPEC_FULL.md §10), so separate
// top-level runs can be told apart in logs. Sub-recipes run through
// execute_recipe share their top-level run's id.
type ExecutionResult struct {
	RunID  string
	Events []DebugEvent
}

// Config tunes executor safety limits and observability.
type Config struct {
	RecursionLimit int // 0 means DefaultRecursionLimit
	RecordEvents   bool
}

// Executor runs recipes against a Context. It is reentrant: execute_recipe
// re-enters with the same or an overridden Context (spec.md §4.E), and
// loop/parallel re-enter it per iteration/branch against a cloned Context.
type Executor struct {
	registry *step.Registry
	renderer *template.Renderer
	config   Config
}

// New builds an Executor wired to registry (step type -> factory) and
// renderer (the shared, stateless template engine).
func New(registry *step.Registry, renderer *template.Renderer, config Config) *Executor {
	if config.RecursionLimit == 0 {
		config.RecursionLimit = DefaultRecursionLimit
	}
	return &Executor{registry: registry, renderer: renderer, config: config}
}

// Load reads a recipe (path, JSON string, or parsed object) and validates
// that every step's type resolves in the registry (spec.md §4.E).
func (e *Executor) Load(source any) (*recipe.Recipe, error) {
	r, err := recipe.Load(source)
	if err != nil {
		return nil, err
	}
	for i, s := range r.Steps {
		if !e.registry.IsRegistered(s.Type) {
			return nil, &recipe.LoadError{Reason: fmt.Sprintf("steps[%d]: unknown step type %q", i, s.Type)}
		}
	}
	return r, nil
}

// Execute runs recipe's steps in declaration order against rc, the
// top-level entry point (spec.md §4.E, depth 0).
func (e *Executor) Execute(ctx context.Context, r *recipe.Recipe, rc *rcontext.Context) (ExecutionResult, error) {
	runID := uuid.New().String()
	run := &run{executor: e, ctx: rc, depth: 0, record: true, runID: runID}
	err := run.runSequential(ctx, r.Steps)
	return ExecutionResult{RunID: runID, Events: run.events}, err
}

// run is a single (executor, context, depth) binding that implements
// step.Runtime. A fresh run is constructed for every RunSteps/RunRecipe
// call rather than mutated in place, so concurrent loop/parallel branches
// calling RunSteps on a shared parent run never race on its fields — each
// call gets its own child run bound to its own Context (spec.md §5: no
// mutexes needed because each concurrent branch owns disjoint state).
type run struct {
	executor *Executor
	ctx      *rcontext.Context
	depth    int
	record   bool
	runID    string
	events   []DebugEvent
}

var _ step.Runtime = (*run)(nil)

func (r *run) Context() *rcontext.Context { return r.ctx }

func (r *run) Renderer() *template.Renderer { return r.executor.renderer }

// RunSteps executes specs sequentially against target. Used directly by
// conditional (target == the same Context, no isolation) and by
// loop/parallel (target == a fresh clone, isolated). Safe to call
// concurrently on the same Runtime with different targets.
func (r *run) RunSteps(ctx context.Context, specs []recipe.StepSpec, target *rcontext.Context) error {
	child := &run{executor: r.executor, ctx: target, depth: r.depth, runID: r.runID}
	return child.runSequential(ctx, specs)
}

// RunRecipe loads source as a sub-recipe and executes it against target,
// incrementing the recursion-depth counter (execute_recipe, spec.md §4.F).
// Exceeding the configured limit is a RecursionLimitError (spec.md §7).
func (r *run) RunRecipe(ctx context.Context, source any, target *rcontext.Context) error {
	if r.depth+1 > r.executor.config.RecursionLimit {
		return &step.RecursionLimitError{Limit: r.executor.config.RecursionLimit}
	}

	sub, err := r.executor.Load(source)
	if err != nil {
		return err
	}

	child := &run{executor: r.executor, ctx: target, depth: r.depth + 1, runID: r.runID}
	return child.runSequential(ctx, sub.Steps)
}

// runSequential is the dispatcher at the heart of §4.E: for each step,
// instantiate via registry (schema-validating config), execute, and abort
// the whole list on the first failure, wrapping the cause with its index
// and type.
func (r *run) runSequential(ctx context.Context, specs []recipe.StepSpec) error {
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.recordEvent("step_start", i, spec.Type, "")
		inst, err := r.executor.registry.Build(spec.Type, spec.Config)
		if err != nil {
			return &ExecutionError{StepIndex: i, StepType: spec.Type, Cause: err}
		}

		if err := inst.Execute(ctx, r); err != nil {
			r.recordEvent("step_failed", i, spec.Type, err.Error())
			return &ExecutionError{StepIndex: i, StepType: spec.Type, Cause: err}
		}
		r.recordEvent("step_complete", i, spec.Type, "")
	}
	return nil
}

func (r *run) recordEvent(event string, stepIndex int, stepType, detail string) {
	if !r.record || !r.executor.config.RecordEvents {
		return
	}
	r.events = append(r.events, DebugEvent{RunID: r.runID, Event: event, StepIndex: stepIndex, StepType: stepType, Detail: detail})
}
