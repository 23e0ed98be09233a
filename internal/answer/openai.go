package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator answers questions via the OpenAI chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. An empty API key is allowed; the
// generator then fails with ErrNotConfigured when asked to generate.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	g := &OpenAIGenerator{model: model}
	if apiKey != "" {
		g.client = openai.NewClient(apiKey)
	}
	return g
}

// NewOpenAIGeneratorWithConfig creates a generator from an explicit client
// config (used to point at a test server).
func NewOpenAIGeneratorWithConfig(cfg openai.ClientConfig, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

// Model returns the configured chat model.
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate answers the question from the joined context passages.
func (g *OpenAIGenerator) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
	}

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(contexts, "\n\n"), question)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classify maps OpenAI API failures onto the package error kinds so the
// boundary layer can pick an appropriate user-visible message.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrNotConfigured, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("generate answer: %w", err)
}
