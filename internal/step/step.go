// Package step defines the Step interface, the process-wide Step Registry,
// and config-schema validation (spec.md §4.C, §4.D).
//
// The Registry is grounded on core/decorator/registry.go's database/sql
// driver-registration pattern (one Register call per step type, made by
// internal/steps.RegisterAll rather than by package init, and
// RWMutex-protected lookup),
// generalized from decorator-role inference to a flat type-tag -> factory
// map, since steps (unlike decorators) are a fixed, closed set with no role
// inference needed (spec.md §4.C).
package step

import (
	"context"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/recipe"
	"github.com/aledsdavies/reciperun/internal/template"
)

// Step is one unit of execution with a validated config and an async
// execute method (spec.md §4.D). Implementations must not retain a
// reference to the Context across a suspension in a way that would race
// with a control-flow step's clone (spec.md §4.D).
type Step interface {
	Execute(ctx context.Context, rt Runtime) error
}

// Runtime is the subset of the executor's capabilities a step needs:
// access to the shared Context, the ability to recurse into a sub-recipe
// or an inline substep list, and the shared template renderer. Declared
// here (rather than steps importing the executor package directly) to keep
// executor -> step a one-way dependency.
type Runtime interface {
	Context() *rcontext.Context
	// RunRecipe loads and executes a sub-recipe against target, honoring
	// the current recursion depth (execute_recipe, spec.md §4.F).
	RunRecipe(ctx context.Context, source any, target *rcontext.Context) error
	// RunSteps executes an inline list of StepSpecs (conditional branches,
	// loop/parallel substeps) against target.
	RunSteps(ctx context.Context, specs []recipe.StepSpec, target *rcontext.Context) error
	// Renderer exposes the shared template renderer so steps can render
	// their own config fields at execute time (spec.md §4.D: "defer
	// template rendering to execute time").
	Renderer() *template.Renderer
}
