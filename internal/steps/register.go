// Package steps wires every step implementation into a step.Registry. It is
// the Go-idiomatic equivalent of the teacher's decorator auto-registration:
// rather than package-level init() side effects (which would force
// llm_generate's provider-keyed construction through a global, env-read at
// import time), RegisterAll takes explicit dependencies and registers each
// factory by name, called once from cmd/reciperun at startup.
package steps

import (
	"github.com/aledsdavies/reciperun/internal/llm"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/steps/conditional"
	"github.com/aledsdavies/reciperun/internal/steps/executerecipe"
	"github.com/aledsdavies/reciperun/internal/steps/llmgenerate"
	"github.com/aledsdavies/reciperun/internal/steps/loop"
	"github.com/aledsdavies/reciperun/internal/steps/mcp"
	"github.com/aledsdavies/reciperun/internal/steps/parallel"
	"github.com/aledsdavies/reciperun/internal/steps/readfiles"
	"github.com/aledsdavies/reciperun/internal/steps/setcontext"
	"github.com/aledsdavies/reciperun/internal/steps/writefiles"
)

// RegisterAll registers the full step type tag set (spec.md §4.C) into
// registry. openAIAPIKey is threaded to llm_generate's provider registry;
// pass "" when no OpenAI credential is configured (the echo provider and
// any recipe that never reaches an openai/ model still work).
func RegisterAll(registry *step.Registry, openAIAPIKey string) {
	registry.Register("set_context", setcontext.Factory)
	registry.Register("conditional", conditional.Factory)
	registry.Register("loop", loop.Factory)
	registry.Register("parallel", parallel.Factory)
	registry.Register("execute_recipe", executerecipe.Factory)
	registry.Register("read_files", readfiles.Factory)
	registry.Register("write_files", writefiles.Factory)
	registry.Register("mcp", mcp.Factory)
	registry.Register("llm_generate", llmgenerate.NewFactory(llm.NewRegistry(openAIAPIKey)))
}
