package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"prodintel/internal/answer"
	"prodintel/internal/catalog"
	"prodintel/internal/config"
	"prodintel/internal/embedder"
	"prodintel/internal/index"
	"prodintel/internal/matcher"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "prodintel",
	Short: "Product recognition and documentation Q&A powered by OCR and RAG",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "config file path")
}

// loadConfig reads the configured YAML file, falling back to defaults when
// it does not exist.
func loadConfig() (*config.Config, error) {
	return config.Load(flagConfig)
}

// newMatcher loads the catalog and builds the matcher. A missing or broken
// catalog degrades to an empty matcher, matching the service behavior.
func newMatcher(cfg *config.Config) *matcher.Matcher {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog, matcher will return no results", "path", cfg.CatalogPath, "err", err)
		cat = catalog.Empty()
	} else {
		slog.Info("catalog loaded", "products", cat.Len())
	}
	return matcher.New(cat, matcher.Config{
		MinConfidence: cfg.Matching.MinConfidence,
		TopK:          cfg.Matching.TopK,
		TitleWeight:   cfg.Matching.TitleWeight,
		ModelWeight:   cfg.Matching.ModelWeight,
		BrandWeight:   cfg.Matching.BrandWeight,
	})
}

// newEngine builds the retrieval engine, loading the persisted index or
// rebuilding it as needed.
func newEngine(cfg *config.Config) (*index.Engine, error) {
	emb, err := embedder.FromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return index.New(index.Config{
		DocsDir:      cfg.DocsDir,
		IndexDir:     cfg.IndexDir,
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		TopK:         cfg.Retrieval.TopK,
	}, emb), nil
}

// newGenerator builds the configured answer generator.
func newGenerator(cfg *config.Config) (answer.Generator, error) {
	return answer.FromConfig(cfg.LLM)
}
