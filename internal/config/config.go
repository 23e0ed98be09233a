package config

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MatchingConfig tunes the fuzzy candidate matcher.
type MatchingConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	TopK          int     `yaml:"top_k"`
	TitleWeight   float64 `yaml:"title_weight"`
	ModelWeight   float64 `yaml:"model_weight"`
	BrandWeight   float64 `yaml:"brand_weight"`
}

// ChunkingConfig controls how documents are split into word windows.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig controls nearest-neighbor retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingConfig selects the embedding provider used at both index-build
// and query time.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "ollama" or "openai"
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
}

// LLMConfig selects the answer-generation backend.
type LLMConfig struct {
	Provider  string `yaml:"provider"` // "openai" or "ollama"
	Model     string `yaml:"model"`
	OllamaURL string `yaml:"ollama_url"`
}

// OCRConfig configures the text-extraction adapter.
type OCRConfig struct {
	TesseractPath string `yaml:"tesseract_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root application configuration.
type Config struct {
	DataDir     string          `yaml:"data_dir"`
	CatalogPath string          `yaml:"catalog_path"`
	DocsDir     string          `yaml:"docs_dir"`
	IndexDir    string          `yaml:"index_dir"`
	Matching    MatchingConfig  `yaml:"matching"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Retrieval   RetrievalConfig `yaml:"retrieval"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	LLM         LLMConfig       `yaml:"llm"`
	OCR         OCRConfig       `yaml:"ocr"`
	Server      ServerConfig    `yaml:"server"`
}

// Load reads a config from the given path. If the file does not exist,
// defaults are returned. A .env file in the working directory is loaded
// first so OPENAI_API_KEY and friends are available to the process.
//
// Unmarshaling goes into a pre-populated Default(), so keys absent from the
// file keep their defaults while explicitly configured values, including
// zeros like `overlap: 0` or `min_confidence: 0`, are kept as written.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	// Weights are trusted as configured, not normalized. A blend that does
	// not sum to 1.0 can push combined scores outside [0,1], so warn.
	sum := cfg.Matching.TitleWeight + cfg.Matching.ModelWeight + cfg.Matching.BrandWeight
	if math.Abs(sum-1.0) > 0.01 {
		slog.Warn("matching weights do not sum to 1.0", "sum", sum)
	}
	return cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// OpenAIKey returns the OpenAI API key from the environment, or "".
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// Default returns the built-in configuration. The catalog/docs/index paths
// are left empty here; applyDefaults derives them from DataDir so that a
// configured data_dir carries through to paths the file does not set.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Matching: MatchingConfig{
			MinConfidence: 0.6,
			TopK:          3,
			TitleWeight:   0.5,
			ModelWeight:   0.3,
			BrandWeight:   0.2,
		},
		Chunking: ChunkingConfig{
			Size:    300,
			Overlap: 75,
		},
		Retrieval: RetrievalConfig{
			TopK: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			OllamaURL: "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			OllamaURL: "http://localhost:11434",
		},
		OCR: OCRConfig{
			TesseractPath: "tesseract",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// applyDefaults derives the data-relative paths. Everything else defaults
// through the pre-populated struct Load unmarshals into.
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = filepath.Join(cfg.DataDir, "catalog.csv")
	}
	if cfg.DocsDir == "" {
		cfg.DocsDir = filepath.Join(cfg.DataDir, "docs")
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = filepath.Join(cfg.DataDir, "index")
	}
}
