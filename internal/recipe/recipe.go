// Package recipe defines the Recipe/StepSpec data model and loading
// (spec.md §3, §4.E "load"). A recipe is pure data: an ordered list of
// typed, schema-validated steps plus ignored metadata.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"
)

// StepSpec is one entry in a recipe's steps array: a type tag resolved
// against the step registry, and a raw config object deferred to the step's
// own schema validation at instantiation time (spec.md §3, §4.D).
type StepSpec struct {
	Type   string
	Config map[string]any
}

// Recipe is an ordered list of steps plus ignored top-level metadata
// (spec.md §3, §6 "any additional top-level keys are ignored").
type Recipe struct {
	Steps    []StepSpec
	Metadata map[string]any
}

// LoadError reports a malformed recipe document: missing steps, a step
// missing its type, or any other shape violation caught before execution
// begins. Corresponds to spec.md §7's RecipeLoadError.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("recipe load: %s", e.Reason)
}

// Load reads a recipe from a filesystem path, a JSON string, or an
// already-parsed object (map[string]any), per spec.md §4.E. Unknown
// step-type validation is the caller's responsibility (the registry is not
// known to this package) — Load only validates the document's shape.
func Load(source any) (*Recipe, error) {
	var raw map[string]any

	switch v := source.(type) {
	case map[string]any:
		raw = v
	case string:
		data := []byte(v)
		if looksLikePath(v) {
			fileData, err := os.ReadFile(v)
			if err != nil {
				// Fall back to treating the string as a literal JSON document;
				// only report a load error if it also fails to parse as JSON.
				if jsonErr := json.Unmarshal(data, &raw); jsonErr != nil {
					return nil, &LoadError{Reason: fmt.Sprintf("could not read %q as a file (%v) or parse it as JSON (%v)", v, err, jsonErr)}
				}
				break
			}
			data = fileData
		}
		if raw == nil {
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, &LoadError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
			}
		}
	case []byte:
		if err := json.Unmarshal(v, &raw); err != nil {
			return nil, &LoadError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
		}
	default:
		return nil, &LoadError{Reason: fmt.Sprintf("unsupported recipe source type %T", source)}
	}

	return fromRaw(raw)
}

// looksLikePath is a cheap heuristic distinguishing a filesystem path from
// an inline JSON string: JSON documents always start with '{' once
// whitespace is trimmed, paths never do.
func looksLikePath(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return false
		default:
			return true
		}
	}
	return true
}

func fromRaw(raw map[string]any) (*Recipe, error) {
	stepsRaw, ok := raw["steps"]
	if !ok {
		return nil, &LoadError{Reason: "missing required \"steps\" array"}
	}
	stepsList, ok := stepsRaw.([]any)
	if !ok {
		return nil, &LoadError{Reason: "\"steps\" must be an array"}
	}

	steps, err := ParseSteps(stepsList)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "steps" {
			continue
		}
		metadata[k] = v
	}

	return &Recipe{Steps: steps, Metadata: metadata}, nil
}

// ParseSteps decodes a raw JSON-shaped steps array (each element a
// map[string]any with "type" and optional "config") into []StepSpec. Shared
// by Load and by composite steps (conditional's branches, loop's inline
// steps) that carry an inlined steps array inside their own config rather
// than a full recipe document (spec.md §4.F).
func ParseSteps(stepsList []any) ([]StepSpec, error) {
	steps := make([]StepSpec, 0, len(stepsList))
	for i, s := range stepsList {
		stepObj, ok := s.(map[string]any)
		if !ok {
			return nil, &LoadError{Reason: fmt.Sprintf("steps[%d] must be an object", i)}
		}
		typeRaw, ok := stepObj["type"]
		if !ok {
			return nil, &LoadError{Reason: fmt.Sprintf("steps[%d] missing \"type\"", i)}
		}
		typeStr, ok := typeRaw.(string)
		if !ok || typeStr == "" {
			return nil, &LoadError{Reason: fmt.Sprintf("steps[%d] \"type\" must be a non-empty string", i)}
		}

		config := map[string]any{}
		if cfgRaw, ok := stepObj["config"]; ok {
			cfgMap, ok := cfgRaw.(map[string]any)
			if !ok {
				return nil, &LoadError{Reason: fmt.Sprintf("steps[%d] \"config\" must be an object", i)}
			}
			config = cfgMap
		}

		steps = append(steps, StepSpec{Type: typeStr, Config: config})
	}
	return steps, nil
}
