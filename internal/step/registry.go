package step

import (
	"fmt"
	"sync"
)

// Factory builds a Step from a validated, rendered-at-execute-time config.
// Registry.Build validates config against Schema() before calling New
// (spec.md §4.D).
type Factory interface {
	// Schema returns this step type's JSON Schema for config validation.
	Schema() map[string]any
	// New builds a Step instance from config. Callers (the Registry) must
	// validate config against Schema() before calling New.
	New(config map[string]any) (Step, error)
}

// Registry is the process-wide mapping from step type tag to factory
// (spec.md §4.C). Grounded on core/decorator/registry.go's
// database/sql-style driver registration: a Register call per step type
// (made by internal/steps.RegisterAll, not by package init functions) and
// RWMutex-protected lookup. Lookup is case-sensitive per spec.md §4.C.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]Factory
	validate *SchemaValidator
}

// NewRegistry creates an empty registry with its own schema-validator
// cache.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]Factory),
		validate: NewSchemaValidator(),
	}
}

// Register adds a factory under type tag name. Re-registering the same
// name overwrites the previous factory (used by tests to stub steps).
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = factory
}

// IsRegistered reports whether name resolves in the registry.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Build validates config against the named step type's schema and
// constructs a Step instance. Returns a *ConfigError on schema validation
// failure (spec.md §4.D), or a plain error if name is unregistered (a
// recipe-load-time concern the Executor checks separately via
// IsRegistered; Build re-checks for defense in depth).
func (r *Registry) Build(name string, config map[string]any) (Step, error) {
	r.mu.RLock()
	factory, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("step: unknown type %q", name)
	}

	if err := r.validate.Validate(name, factory.Schema(), config); err != nil {
		return nil, err
	}
	return factory.New(config)
}

// Global returns a process-wide registry instance. No step package
// registers into it on its own; it holds whatever a caller registers.
func Global() *Registry {
	return global
}

var global = NewRegistry()
