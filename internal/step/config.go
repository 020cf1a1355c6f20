package step

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator validates step configs against JSON Schemas, compiling
// and caching one *jsonschema.Schema per distinct schema value.
//
// Grounded directly on core/types/validation.go's Validator: a compiled-
// schema cache keyed by the schema's own JSON form, Draft2020 compilation,
// and a LoadURL hook that refuses remote $ref resolution (steps' configs
// are recipe-author-controlled, not arbitrary network input, but the
// defense costs nothing and matches the teacher's posture).
type SchemaValidator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewSchemaValidator creates an empty validator/cache pair.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate validates config against the given JSON Schema (as a
// map[string]any), returning a *ConfigError naming stepType and the
// offending field on failure.
func (v *SchemaValidator) Validate(stepType string, schema map[string]any, config map[string]any) error {
	compiled, err := v.compiled(schema)
	if err != nil {
		return &ConfigError{StepType: stepType, Cause: fmt.Errorf("schema compile: %w", err)}
	}

	// jsonschema validates against native Go values produced by
	// encoding/json; round-trip through JSON so numeric types (int vs
	// float64) match what a loaded recipe would have produced.
	normalized, err := normalize(config)
	if err != nil {
		return &ConfigError{StepType: stepType, Cause: err}
	}

	if err := compiled.Validate(normalized); err != nil {
		field := ""
		if verr, ok := err.(*jsonschema.ValidationError); ok && len(verr.Causes) > 0 {
			field = strings.TrimPrefix(verr.Causes[0].InstanceLocation, "/")
		}
		return &ConfigError{StepType: stepType, Field: field, Cause: err}
	}
	return nil
}

func (v *SchemaValidator) compiled(schema map[string]any) (*jsonschema.Schema, error) {
	key, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if existing, ok := v.cache[string(key)]; ok {
		return existing, nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("remote $ref not allowed: %s", url)
	}

	const url = "schema://step-config.json"
	if err := compiler.AddResource(url, bytes.NewReader(key)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	v.cache[string(key)] = compiled
	return compiled, nil
}

func normalize(config map[string]any) (any, error) {
	b, err := json.Marshal(config)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
