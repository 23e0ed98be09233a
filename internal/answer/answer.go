// Package answer turns retrieved documentation passages into a prose answer
// for a product question.
package answer

import (
	"context"
	"errors"
	"fmt"

	"prodintel/internal/config"
)

// Error kinds the boundary layer can distinguish with errors.Is.
var (
	// ErrNotConfigured means the generator cannot run because a credential
	// is missing or rejected.
	ErrNotConfigured = errors.New("answer generation not configured")
	// ErrRateLimited means the downstream service throttled the request.
	ErrRateLimited = errors.New("answer generation rate limited")
)

const systemPrompt = `You are a technical product expert. Answer questions using ONLY the information provided in the context below.

Rules:
1. Quote exact specifications with proper units (mAh, inches, GB, cores, Hz, nits)
2. If the context doesn't contain the answer, respond: 'This information is not specified in the documentation'
3. Never make assumptions, estimates, or use external knowledge
4. For numerical specs, use the exact values from the context
5. Keep answers concise but complete
6. If multiple variants exist, clarify which one you're describing

Format your answer clearly and professionally.`

// Generator produces an answer to a question from context passages.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
	Model() string
}

// FromConfig builds the configured generator. A missing OpenAI key does not
// fail construction; the generator reports ErrNotConfigured on use, so the
// rest of the service keeps working without a credential.
func FromConfig(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIGenerator(config.OpenAIKey(), cfg.Model), nil
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
