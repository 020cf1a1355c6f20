// Package template implements the Liquid-style template renderer (spec.md
// §4.A): pure, side-effect-free rendering of context artifacts/config into
// step configs.
//
// Uses github.com/osteele/liquid as the Liquid engine per spec.md §9's
// instruction to "use an existing library in whatever target language
// provides it" rather than hand-rolling a template grammar. No repo in the
// retrieved pack ships a Liquid engine, so this is an ecosystem addition
// (documented in DESIGN.md) rather than a pack-grounded dependency.
package template

import (
	"fmt"
	"strconv"
	"strings"

	liquid "github.com/osteele/liquid"
)

// maxNestedPasses caps nested re-rendering so a template that keeps
// producing more template syntax cannot loop forever (spec.md §4.A).
const maxNestedPasses = 10

// Error wraps a Liquid syntax or evaluation failure. Corresponds to
// spec.md §7's TemplateError.
type Error struct {
	Template string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template: %v", e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Renderer renders Liquid-style templates against a binding map. It holds
// no per-call state; Render is safe to call concurrently (the renderer
// itself never mutates a context, per spec.md §4.A's purity requirement).
type Renderer struct {
	engine *liquid.Engine
}

// New builds a Renderer with the filters spec.md §4.A names registered:
// default, json, upcase, downcase, replace, split, snakecase. capture,
// if/else/endif, for/endfor and raw/endraw are handled by the underlying
// Liquid engine's tag set.
func New() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("snakecase", snakecaseFilter)
	engine.RegisterFilter("json", jsonFilter)
	return &Renderer{engine: engine}
}

// Render implements the render(value, context) -> rendered_value contract.
// Strings are Liquid-rendered; maps and slices are walked structurally,
// rendering each string leaf; other scalars pass through unchanged.
//
// nested re-renders the result to a fixed point (no more {{ or {% tokens),
// skipping {% raw %}...{% endraw %} spans, up to maxNestedPasses times.
func (r *Renderer) Render(value any, bindings map[string]any, nested bool) (any, error) {
	switch v := value.(type) {
	case string:
		return r.renderString(v, bindings, nested)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			rendered, err := r.Render(sub, bindings, nested)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			rendered, err := r.Render(sub, bindings, nested)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

// RenderString is a convenience wrapper for the common case of rendering a
// single string to a string (used by steps that need e.g. a rendered path).
func (r *Renderer) RenderString(tmpl string, bindings map[string]any, nested bool) (string, error) {
	out, err := r.renderString(tmpl, bindings, nested)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (r *Renderer) renderString(tmpl string, bindings map[string]any, nested bool) (string, error) {
	// Raw spans are replaced by placeholders once, before the first pass, and
	// restored only on return, so no nested pass ever sees their content.
	current, raws := extractRaw(tmpl)
	passes := 0
	for {
		parsed, err := r.engine.ParseTemplate([]byte(current))
		if err != nil {
			return "", &Error{Template: current, Cause: err}
		}
		renderedBytes, err := parsed.Render(liquid.Bindings(bindings))
		if err != nil {
			return "", &Error{Template: current, Cause: err}
		}
		rendered := string(renderedBytes)

		passes++
		if !nested || passes >= maxNestedPasses || !hasTemplateTokens(rendered) {
			return restoreRaw(rendered, raws), nil
		}
		current = rendered
	}
}

// hasTemplateTokens reports whether s still contains unresolved Liquid
// delimiters, used to decide whether another nested pass is needed.
func hasTemplateTokens(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

const rawPlaceholderPrefix = "\x00RAW_BLOCK_"

// extractRaw replaces {% raw %}...{% endraw %} spans with opaque
// placeholders so later re-render passes cannot reinterpret their content,
// returning the placeholder-substituted template and the original raw
// bodies in order.
func extractRaw(tmpl string) (string, []string) {
	var raws []string
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{% raw %}")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest, "{% endraw %}")
		if end < 0 || end < start {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		body := rest[start+len("{% raw %}") : end]
		raws = append(raws, body)
		b.WriteString(rawPlaceholderPrefix + strconv.Itoa(len(raws)-1) + "\x00")
		rest = rest[end+len("{% endraw %}"):]
	}
	return b.String(), raws
}

// restoreRaw substitutes placeholders back with their original raw body.
func restoreRaw(rendered string, raws []string) string {
	out := rendered
	for i, body := range raws {
		placeholder := rawPlaceholderPrefix + strconv.Itoa(i) + "\x00"
		out = strings.ReplaceAll(out, placeholder, body)
	}
	return out
}
