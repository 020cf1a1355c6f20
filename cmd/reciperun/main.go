// Command reciperun loads a recipe file and executes it against a fresh
// Context, the CLI entry point for the recipe executor (SPEC_FULL.md §4.G).
//
// Grounded on cli/main.go's cobra root-command shape (flag wiring, RunE
// returning an error that becomes a nonzero exit code). The teacher's
// stdout/stderr secret-scrubbing lockdown has no equivalent here: that
// guarded against decorator-sourced secret values leaking into command
// output, a concern specific to the teacher's shell-command domain, not to
// JSON recipe execution (see DESIGN.md).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aledsdavies/reciperun/internal/executor"
	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/step"
	"github.com/aledsdavies/reciperun/internal/steps"
	"github.com/aledsdavies/reciperun/internal/template"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		recipePath string
		vars       []string
		debug      bool
		telemetry  bool
	)

	cmd := &cobra.Command{
		Use:   "reciperun",
		Short: "Execute a declarative JSON recipe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseVarFlags(vars)
			if err != nil {
				return err
			}
			return run(cmd.Context(), recipePath, overrides, debug, telemetry)
		},
	}

	cmd.Flags().StringVarP(&recipePath, "file", "f", "recipe.json", "path to the recipe file")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "override a config value, key=value (repeatable)")
	cmd.Flags().BoolVar(&debug, "debug", false, "record and print step-level debug events")
	cmd.Flags().BoolVar(&telemetry, "telemetry", false, "print the run's correlation id and summary to stderr")

	return cmd
}

// run wires the registry, renderer, and executor, loads source, and
// executes it against a Context seeded from the process environment plus
// --var overrides (SPEC_FULL.md §4.G's configuration layering: environment
// first, CLI overrides win).
func run(ctx context.Context, source string, overrides map[string]any, debug, telemetry bool) error {
	config := configFromEnviron(os.Environ())
	for k, v := range overrides {
		config[k] = v
	}

	openAIAPIKey, _ := config["OPENAI_API_KEY"].(string)
	registry := step.NewRegistry()
	steps.RegisterAll(registry, openAIAPIKey)

	exec := executor.New(registry, template.New(), executor.Config{RecordEvents: debug})

	r, err := exec.Load(source)
	if err != nil {
		return fmt.Errorf("loading recipe: %w", err)
	}

	rc := rcontext.New(nil, config)
	result, err := exec.Execute(ctx, r, rc)

	if telemetry {
		fmt.Fprintf(os.Stderr, "run %s: %d step events recorded\n", result.RunID, len(result.Events))
	}
	if debug {
		for _, e := range result.Events {
			fmt.Fprintf(os.Stderr, "[%s] step %d (%s): %s %s\n", e.RunID, e.StepIndex, e.StepType, e.Event, e.Detail)
		}
	}
	if err != nil {
		return fmt.Errorf("executing recipe: %w", err)
	}
	return nil
}

// configFromEnviron seeds the Context's config map from the process
// environment so recipes can read e.g. {{ OPENAI_API_KEY }} or have
// it consumed directly by llm_generate's provider registry, mirroring the
// teacher's pattern of reading process config once at startup rather than
// threading os.Getenv calls through step implementations.
func configFromEnviron(environ []string) map[string]any {
	config := map[string]any{"OPENAI_API_KEY": ""}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		config[k] = v
	}
	return config
}

// parseVarFlags turns repeated --var key=value flags into a config override
// map. A value that parses as JSON (number, bool, object, array) is stored
// decoded; anything else is kept as a raw string.
func parseVarFlags(vars []string) (map[string]any, error) {
	overrides := map[string]any{}
	for _, kv := range vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--var must be key=value, got %q", kv)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			overrides[k] = decoded
		} else {
			overrides[k] = v
		}
	}
	return overrides, nil
}
