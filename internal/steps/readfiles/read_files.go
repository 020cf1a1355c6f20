// Package readfiles implements the read_files step (spec.md §6): reading one
// or more paths (with glob expansion) into an artifact, concatenated or
// merged as a dict with JSON/YAML auto-parsing.
package readfiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/step"
)

// Config is read_files's wire-level schema.
type Config struct {
	Path       []string
	ContentKey string
	Optional   bool
	MergeMode  string // "concat" (default) | "dict"
}

type factory struct{}

// Factory is the step.Factory for read_files, registered into the step
// registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"path", "content_key"},
		"properties": map[string]any{
			"path":        map[string]any{},
			"content_key": map[string]any{"type": "string", "minLength": 1},
			"optional":    map[string]any{"type": "boolean"},
			"merge_mode":  map[string]any{"type": "string", "enum": []any{"concat", "dict"}},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{MergeMode: "concat"}
	switch v := config["path"].(type) {
	case string:
		cfg.Path = []string{v}
	case []any:
		for _, p := range v {
			if s, ok := p.(string); ok {
				cfg.Path = append(cfg.Path, s)
			}
		}
	default:
		return nil, &step.ConfigError{StepType: "read_files", Field: "path", Cause: fmt.Errorf("path must be a string or array of strings")}
	}

	if v, ok := config["content_key"].(string); ok {
		cfg.ContentKey = v
	}
	if v, ok := config["optional"].(bool); ok {
		cfg.Optional = v
	}
	if v, ok := config["merge_mode"].(string); ok && v != "" {
		cfg.MergeMode = v
	}

	return &readFilesStep{cfg: cfg}, nil
}

type readFilesStep struct {
	cfg Config
}

func (s *readFilesStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	renderer := rt.Renderer()

	var matches []string
	for _, raw := range s.cfg.Path {
		rendered, err := renderer.RenderString(raw, rc.Snapshot(), false)
		if err != nil {
			return err
		}
		for _, candidate := range strings.Split(rendered, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			expanded, err := expandGlob(candidate)
			if err != nil {
				return err
			}
			matches = append(matches, expanded...)
		}
	}

	switch s.cfg.MergeMode {
	case "dict":
		return s.readDict(rc, matches)
	default:
		return s.readConcat(rc, matches)
	}
}

// expandGlob expands ** and standard glob syntax via doublestar; a pattern
// with no meta-characters that doesn't exist on disk returns itself
// unchanged so the per-file optional check can report the miss.
func expandGlob(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	dir, rel := splitGlobBase(pattern)
	matches, err := doublestar.Glob(os.DirFS(dir), rel)
	if err != nil {
		return nil, fmt.Errorf("read_files: invalid glob %q: %w", pattern, err)
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, m)
	}
	return out, nil
}

// splitGlobBase finds the longest literal directory prefix of pattern so
// doublestar.Glob can be rooted at a real filesystem.FS.
func splitGlobBase(pattern string) (dir, rel string) {
	parts := strings.Split(filepath.ToSlash(pattern), "/")
	base := 0
	for i, p := range parts {
		if strings.ContainsAny(p, "*?[") {
			break
		}
		base = i + 1
	}
	if base == 0 {
		return ".", pattern
	}
	if base == len(parts) {
		base--
	}
	return strings.Join(parts[:base], "/"), strings.Join(parts[base:], "/")
}

func (s *readFilesStep) readConcat(rc *rcontext.Context, matches []string) error {
	var b strings.Builder
	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			if s.cfg.Optional {
				continue
			}
			return fmt.Errorf("read_files: %w", err)
		}
		b.Write(content)
	}
	rc.Set(s.cfg.ContentKey, b.String())
	return nil
}

func (s *readFilesStep) readDict(rc *rcontext.Context, matches []string) error {
	out := make(map[string]any, len(matches))
	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			if s.cfg.Optional {
				continue
			}
			return fmt.Errorf("read_files: %w", err)
		}
		out[path] = parseStructured(path, content)
	}
	rc.Set(s.cfg.ContentKey, out)
	return nil
}

// parseStructured auto-parses JSON/YAML content by extension, falling back
// to the raw string for anything else (spec.md §6's "auto-parsing of
// JSON/YAML when merge_mode=dict").
func parseStructured(path string, content []byte) any {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var v any
		if err := json.Unmarshal(content, &v); err == nil {
			return v
		}
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(content, &v); err == nil {
			return normalizeYAML(v)
		}
	}
	return string(content)
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already native)
// and map[interface{}]interface{} (from older-style nested decode paths)
// into map[string]any so downstream Context storage is uniform with the
// JSON branch.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalizeYAML(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeYAML(vv)
		}
		return out
	default:
		return v
	}
}
