package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// openAIRequestsPerSecond bounds how often this process calls the
// completions endpoint, independent of how many loop/parallel branches are
// in flight concurrently: max_concurrency bounds calls-in-flight, this
// bounds calls-per-second, a distinct axis a shared client-side limiter is
// the natural place to enforce rather than a per-recipe config field.
const openAIRequestsPerSecond = 5

// OpenAIProvider wraps github.com/sashabaranov/go-openai's chat completion
// API (pack-grounded on ilkoid-poncho-ai/pkg/llm/openai's Client shape,
// filled in past the teacher's TODO stubs with a real request/response
// mapping).
type OpenAIProvider struct {
	client  *openai.Client
	limiter *rate.Limiter
}

// NewOpenAIProvider builds a provider from a bare API key. An empty key
// still constructs a client; Generate will fail at call time with the
// SDK's own auth error rather than panicking here, so a recipe that never
// reaches an openai/ step works without credentials configured.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		limiter: rate.NewLimiter(rate.Limit(openAIRequestsPerSecond), 1),
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, modelID, deployment, prompt string, maxTokens *int) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("openai: rate limit wait: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: modelID,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if deployment != "" {
		// Azure-style deployment override: the SDK's AzureModelMapperFunc
		// path keys off the deployment name rather than the model name.
		req.Model = deployment
	}
	if maxTokens != nil {
		req.MaxTokens = *maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
