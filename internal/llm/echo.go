package llm

import "context"

// EchoProvider is a deterministic, no-network provider for tests and for
// local use when no API key is configured (spec.md §6 EXPANDED). It simply
// returns the prompt back, optionally truncated to maxTokens characters as
// a stand-in for token budgeting.
type EchoProvider struct{}

func (EchoProvider) Generate(_ context.Context, _, _, prompt string, maxTokens *int) (string, error) {
	if maxTokens != nil && *maxTokens >= 0 && *maxTokens < len(prompt) {
		return prompt[:*maxTokens], nil
	}
	return prompt, nil
}
