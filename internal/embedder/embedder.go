// Package embedder maps text to fixed-dimension dense vectors.
package embedder

import (
	"fmt"

	"prodintel/internal/config"
)

// Provider converts text into embedding vectors. Every call within one
// process lifetime returns vectors of the same dimension. The same provider
// must be used at index-build and query time.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(texts []string) ([][]float32, error)
	// EmbedSingle embeds a single text.
	EmbedSingle(text string) ([]float32, error)
	// Model returns the configured model name.
	Model() string
}

// FromConfig builds the configured embedding provider.
func FromConfig(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.Model), nil
	case "openai":
		key := config.OpenAIKey()
		if key == "" {
			return nil, fmt.Errorf("embedding provider %q requires OPENAI_API_KEY", cfg.Provider)
		}
		return NewOpenAIEmbedder(key, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
