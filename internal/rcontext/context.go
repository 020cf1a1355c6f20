// Package rcontext implements the Context: the typed artifact/config
// container threaded through every step of a recipe run.
//
// Grounded on runtime/execution/context/context.go's Ctx (Clone/WithWorkDir
// value-copy pattern) and runtime/execution/context.go's Child() deep-copy
// of the Variables map, generalized from a single shell-execution state
// struct to the two-map artifacts/config model spec.md §3 describes.
package rcontext

import (
	"fmt"

	"github.com/aledsdavies/reciperun/internal/invariant"
)

// Context is the mutable, namespaced state threaded through a recipe run.
//
// artifacts holds step outputs; config holds process-wide static input
// (credentials, paths, CLI --var overrides). Template rendering reads both,
// falling back to config when a name is not found in artifacts. By
// convention, steps write only to artifacts.
type Context struct {
	artifacts map[string]any
	config    map[string]any
}

// New creates a Context from initial artifact and config maps. Nil maps are
// treated as empty. The maps are deep-copied so the caller's maps are never
// aliased into the Context.
func New(artifacts, config map[string]any) *Context {
	c := &Context{
		artifacts: make(map[string]any),
		config:    make(map[string]any),
	}
	for k, v := range artifacts {
		c.artifacts[k] = deepCopy(v)
	}
	for k, v := range config {
		c.config[k] = deepCopy(v)
	}
	return c
}

// Get returns the artifact at key, or an error if it is absent.
func (c *Context) Get(key string) (any, error) {
	if v, ok := c.artifacts[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("rcontext: key %q not found", key)
}

// GetOr returns the artifact at key, or def if it is absent.
func (c *Context) GetOr(key string, def any) any {
	if v, ok := c.artifacts[key]; ok {
		return v
	}
	return def
}

// Set overwrites the artifact at key.
func (c *Context) Set(key string, value any) {
	invariant.NotNil(c, "context")
	c.artifacts[key] = value
}

// Contains reports whether key exists in artifacts.
func (c *Context) Contains(key string) bool {
	_, ok := c.artifacts[key]
	return ok
}

// ConfigGet returns a value from the config map, or an error if absent.
func (c *Context) ConfigGet(key string) (any, error) {
	if v, ok := c.config[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("rcontext: config key %q not found", key)
}

// ConfigSet overwrites a config value. Used at process startup to seed
// credentials/paths/--var overrides; steps are not expected to call this.
func (c *Context) ConfigSet(key string, value any) {
	c.config[key] = value
}

// Merge applies the shallow-merge table from spec.md §4.F (set_context,
// if_exists=merge) between the existing value at key and newValue,
// assigning the result back to key. If key is absent this behaves like Set.
func (c *Context) Merge(key string, newValue any) {
	existing, ok := c.artifacts[key]
	if !ok {
		c.artifacts[key] = newValue
		return
	}
	c.artifacts[key] = mergeValues(existing, newValue)
}

// mergeValues implements the merge table:
//
//	string + string     -> concatenation
//	sequence + sequence -> append all
//	sequence + scalar    -> append one
//	mapping + mapping    -> shallow key-overwrite, new wins
//	anything else        -> [existing, new]
func mergeValues(existing, newValue any) any {
	switch ev := existing.(type) {
	case string:
		if nv, ok := newValue.(string); ok {
			return ev + nv
		}
	case []any:
		if nv, ok := newValue.([]any); ok {
			out := make([]any, 0, len(ev)+len(nv))
			out = append(out, ev...)
			out = append(out, nv...)
			return out
		}
		out := make([]any, 0, len(ev)+1)
		out = append(out, ev...)
		out = append(out, newValue)
		return out
	case map[string]any:
		if nv, ok := newValue.(map[string]any); ok {
			out := make(map[string]any, len(ev)+len(nv))
			for k, v := range ev {
				out[k] = v
			}
			for k, v := range nv {
				out[k] = v
			}
			return out
		}
	}
	return []any{existing, newValue}
}

// Snapshot returns a read-only view suitable for template rendering: a
// single map exposing artifacts, with config entries filling in any name
// not already present in artifacts.
func (c *Context) Snapshot() map[string]any {
	view := make(map[string]any, len(c.artifacts)+len(c.config))
	for k, v := range c.config {
		view[k] = v
	}
	for k, v := range c.artifacts {
		view[k] = v
	}
	return view
}

// Artifacts returns a copy of the artifacts map. Used by loop to collect a
// clone's full artifact set as a per-iteration result (see internal/steps/loop).
func (c *Context) Artifacts() map[string]any {
	out := make(map[string]any, len(c.artifacts))
	for k, v := range c.artifacts {
		out[k] = deepCopy(v)
	}
	return out
}

// Clone returns an independent deep copy. Mutations to the clone must never
// be visible in the original and vice versa (spec.md §3 invariant 2).
func (c *Context) Clone() *Context {
	clone := &Context{
		artifacts: make(map[string]any, len(c.artifacts)),
		config:    make(map[string]any, len(c.config)),
	}
	for k, v := range c.artifacts {
		clone.artifacts[k] = deepCopy(v)
	}
	for k, v := range c.config {
		clone.config[k] = deepCopy(v)
	}
	return clone
}

// deepCopy recursively copies maps, slices and FileSpec values so that a
// Context and its Clone never share interior mutable state. Scalars are
// returned unchanged (they are already value types in Go).
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	case FileSpec:
		return FileSpec{Path: t.Path, Content: deepCopy(t.Content)}
	case *FileSpec:
		if t == nil {
			return t
		}
		dup := FileSpec{Path: t.Path, Content: deepCopy(t.Content)}
		return &dup
	case []FileSpec:
		out := make([]FileSpec, len(t))
		for i, vv := range t {
			out[i] = FileSpec{Path: vv.Path, Content: deepCopy(vv.Content)}
		}
		return out
	default:
		return v
	}
}

// FileSpec is a {path, content} pair representing a file to write. Content
// may be a string or any JSON-serializable value; write_files decides how
// to serialize it (spec.md §3).
type FileSpec struct {
	Path    string `json:"path"`
	Content any    `json:"content"`
}
