// Package llm implements the external-collaborator dispatch for
// llm_generate (spec.md §6): parsing `model` as provider/model_id[/deployment]
// and routing to a Provider. The executor's contract ends at this interface;
// model selection and request/response mapping are the provider's concern.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider generates a single completion for prompt.
type Provider interface {
	Generate(ctx context.Context, modelID, deployment, prompt string, maxTokens *int) (string, error)
}

// Request is a fully-parsed llm_generate invocation.
type Request struct {
	Prompt     string
	Provider   string
	ModelID    string
	Deployment string
	MaxTokens  *int
}

// ParseModel splits "provider/model_id[/deployment]" per spec.md §6.
func ParseModel(model string) (provider, modelID, deployment string, err error) {
	parts := strings.SplitN(model, "/", 3)
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("llm_generate: model %q must be \"provider/model_id[/deployment]\"", model)
	}
	provider = parts[0]
	modelID = parts[1]
	if len(parts) == 3 {
		deployment = parts[2]
	}
	return provider, modelID, deployment, nil
}

// Registry maps provider name to Provider, mirroring the step registry's
// own lookup-by-tag shape (core/decorator/registry.go's pattern, reapplied
// here rather than invented fresh).
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry with the openai and echo providers
// pre-registered (spec.md §6 EXPANDED: "two providers ship").
func NewRegistry(openAIAPIKey string) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	r.providers["openai"] = NewOpenAIProvider(openAIAPIKey)
	r.providers["echo"] = EchoProvider{}
	return r
}

// Generate dispatches req.Provider's Generate call.
func (r *Registry) Generate(ctx context.Context, req Request) (string, error) {
	p, ok := r.providers[req.Provider]
	if !ok {
		return "", fmt.Errorf("llm_generate: unknown provider %q", req.Provider)
	}
	return p.Generate(ctx, req.ModelID, req.Deployment, req.Prompt, req.MaxTokens)
}
