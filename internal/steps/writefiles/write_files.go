// Package writefiles implements the write_files step (spec.md §6): writing
// either a FileSpec/[]FileSpec artifact or an inline list of {path, content}
// entries, creating parent directories and JSON-serializing non-string
// content.
package writefiles

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aledsdavies/reciperun/internal/rcontext"
	"github.com/aledsdavies/reciperun/internal/step"
)

// fileEntry is one inline {path, content} entry before rendering, or a
// pointer into the context via path_key/content_key.
type fileEntry struct {
	Path       string
	PathKey    string
	Content    any
	ContentKey string
}

// Config is write_files's wire-level schema.
type Config struct {
	FilesKey string
	Files    []fileEntry
	Root     string
}

type factory struct{}

// Factory is the step.Factory for write_files, registered into the step
// registry passed to internal/steps.RegisterAll.
var Factory step.Factory = factory{}

func (factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"files_key": map[string]any{"type": "string"},
			"files":     map[string]any{"type": "array"},
			"root":      map[string]any{"type": "string"},
		},
	}
}

func (factory) New(config map[string]any) (step.Step, error) {
	cfg := Config{Root: "."}
	if v, ok := config["root"].(string); ok && v != "" {
		cfg.Root = v
	}

	filesRaw, hasFiles := config["files"].([]any)
	filesKey, hasFilesKey := config["files_key"].(string)

	if !hasFiles && !hasFilesKey {
		return nil, &step.ConfigError{StepType: "write_files", Cause: fmt.Errorf("exactly one of files_key or files is required")}
	}

	// files wins if both are present (spec.md §6).
	if hasFiles {
		for i, raw := range filesRaw {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, &step.ConfigError{StepType: "write_files", Field: fmt.Sprintf("files[%d]", i), Cause: fmt.Errorf("must be an object")}
			}
			entry := fileEntry{}
			if v, ok := obj["path"].(string); ok {
				entry.Path = v
			}
			if v, ok := obj["path_key"].(string); ok {
				entry.PathKey = v
			}
			entry.Content = obj["content"]
			if v, ok := obj["content_key"].(string); ok {
				entry.ContentKey = v
			}
			cfg.Files = append(cfg.Files, entry)
		}
	} else {
		cfg.FilesKey = filesKey
	}

	return &writeFilesStep{cfg: cfg}, nil
}

type writeFilesStep struct {
	cfg Config
}

func (s *writeFilesStep) Execute(ctx context.Context, rt step.Runtime) error {
	rc := rt.Context()
	renderer := rt.Renderer()

	specs, err := s.resolveSpecs(rc)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		path, err := renderer.RenderString(spec.Path, rc.Snapshot(), false)
		if err != nil {
			return err
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.cfg.Root, path)
		}

		data, err := serialize(spec.Content)
		if err != nil {
			return fmt.Errorf("write_files: %s: %w", path, err)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write_files: %w", err)
		}
	}
	return nil
}

// resolveSpecs turns the inline `files` config or the `files_key` artifact
// into a uniform list of {path, content} pairs.
func (s *writeFilesStep) resolveSpecs(rc *rcontext.Context) ([]rcontext.FileSpec, error) {
	if s.cfg.Files != nil {
		out := make([]rcontext.FileSpec, 0, len(s.cfg.Files))
		for _, entry := range s.cfg.Files {
			path := entry.Path
			if entry.PathKey != "" {
				v, err := rc.Get(entry.PathKey)
				if err != nil {
					return nil, err
				}
				path = fmt.Sprintf("%v", v)
			}
			content := entry.Content
			if entry.ContentKey != "" {
				v, err := rc.Get(entry.ContentKey)
				if err != nil {
					return nil, err
				}
				content = v
			}
			out = append(out, rcontext.FileSpec{Path: path, Content: content})
		}
		return out, nil
	}

	v, err := rc.Get(s.cfg.FilesKey)
	if err != nil {
		return nil, err
	}
	return toFileSpecs(v)
}

func toFileSpecs(v any) ([]rcontext.FileSpec, error) {
	switch t := v.(type) {
	case rcontext.FileSpec:
		return []rcontext.FileSpec{t}, nil
	case []rcontext.FileSpec:
		return t, nil
	case map[string]any:
		path, _ := t["path"].(string)
		return []rcontext.FileSpec{{Path: path, Content: t["content"]}}, nil
	case []any:
		out := make([]rcontext.FileSpec, 0, len(t))
		for _, item := range t {
			specs, err := toFileSpecs(item)
			if err != nil {
				return nil, err
			}
			out = append(out, specs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("write_files: files_key value must be a FileSpec, []FileSpec, or list of {path, content} objects, got %T", v)
	}
}

// serialize returns string content as-is (UTF-8 bytes); everything else is
// JSON-serialized with 2-space indent (spec.md §6).
func serialize(content any) ([]byte, error) {
	if s, ok := content.(string); ok {
		return []byte(s), nil
	}
	return json.MarshalIndent(content, "", "  ")
}
