// Package llmgenerate implements the llm_generate step (spec.md §6): an
// external collaborator wrapping internal/llm's provider dispatch, with
// output_format coercion to text, []FileSpec, or a JSON-schema-validated
// value.
package llmgenerate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aledsdavies/reciperun/internal/llm"
	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is llm_generate's wire-level schema.
type Config struct {
	Prompt       string
	Model        string
	MaxTokens    *int
	OutputFormat any // "text" | "files" | object (schema) | [object] (array-of-schema)
	OutputKey    string
}

type factory struct {
	providers *llm.Registry
}

// NewFactory builds the llm_generate step.Factory, wired to a provider
// registry holding the openai and echo providers (spec.md §6 EXPANDED).
func NewFactory(providers *llm.Registry) step.Factory {
	return &factory{providers: providers}
}

func (*factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"prompt", "output_format", "output_key"},
		"properties": map[string]any{
			"prompt":        map[string]any{"type": "string", "minLength": 1},
			"model":         map[string]any{"type": "string"},
			"max_tokens":    map[string]any{"type": []any{"integer", "null"}},
			"output_format": map[string]any{},
			"output_key":    map[string]any{"type": "string", "minLength": 1},
		},
	}
}

func (f *factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{Model: "openai/gpt-4o"}
	if v, ok := config["prompt"].(string); ok {
		cfg.Prompt = v
	}
	if v, ok := config["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := config["max_tokens"].(float64); ok {
		n := int(v)
		cfg.MaxTokens = &n
	}
	cfg.OutputFormat = config["output_format"]
	if v, ok := config["output_key"].(string); ok {
		cfg.OutputKey = v
	}

	return &llmGenerateStep{cfg: cfg, providers: f.providers}, nil
}

type llmGenerateStep struct {
	cfg       Config
	providers *llm.Registry
}

func (s *llmGenerateStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	renderer := rt.Renderer()

	prompt, err := renderer.RenderString(s.cfg.Prompt, rc.Snapshot(), true)
	if err != nil {
		return err
	}

	provider, modelID, deployment, err := llm.ParseModel(s.cfg.Model)
	if err != nil {
		return err
	}

	completion, err := s.providers.Generate(ctx, llm.Request{
		Prompt:     prompt,
		Provider:   provider,
		ModelID:    modelID,
		Deployment: deployment,
		MaxTokens:  s.cfg.MaxTokens,
	})
	if err != nil {
		return err
	}

	result, err := coerce(s.cfg.OutputFormat, completion)
	if err != nil {
		return err
	}
	rc.Set(s.cfg.OutputKey, result)
	return nil
}

// coerce implements output_format's three shapes (spec.md §6).
func coerce(format any, completion string) (any, error) {
	switch f := format.(type) {
	case string:
		switch f {
		case "text":
			return completion, nil
		case "files":
			var raw []rcontext.FileSpec
			if err := json.Unmarshal([]byte(completion), &raw); err != nil {
				return nil, fmt.Errorf("llm_generate: output_format=files: completion is not a JSON []FileSpec: %w", err)
			}
			return raw, nil
		default:
			return nil, fmt.Errorf("llm_generate: unknown output_format %q", f)
		}
	case []any:
		// Array-of-schema: completion must be a JSON array whose elements
		// each validate against f[0].
		if len(f) != 1 {
			return nil, fmt.Errorf("llm_generate: array output_format must contain exactly one schema")
		}
		schema, ok := f[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("llm_generate: array output_format element must be a schema object")
		}
		var list []any
		if err := json.Unmarshal([]byte(completion), &list); err != nil {
			return nil, fmt.Errorf("llm_generate: completion is not a JSON array: %w", err)
		}
		for i, item := range list {
			if err := validateAgainstSchema(schema, item); err != nil {
				return nil, fmt.Errorf("llm_generate: completion[%d] failed schema validation: %w", i, err)
			}
		}
		return list, nil
	case map[string]any:
		var value any
		if err := json.Unmarshal([]byte(completion), &value); err != nil {
			return nil, fmt.Errorf("llm_generate: completion is not valid JSON: %w", err)
		}
		if err := validateAgainstSchema(f, value); err != nil {
			return nil, fmt.Errorf("llm_generate: completion failed schema validation: %w", err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("llm_generate: output_format must be \"text\", \"files\", a schema object, or a single-element array of one")
	}
}

func validateAgainstSchema(schema map[string]any, value any) error {
	key, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	const url = "schema://llm-output.json"
	if err := compiler.AddResource(url, bytes.NewReader(key)); err != nil {
		return err
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return err
	}
	return compiled.Validate(value)
}
