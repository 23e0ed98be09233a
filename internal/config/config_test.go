package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.Matching.MinConfidence)
	assert.Equal(t, 3, cfg.Matching.TopK)
	assert.Equal(t, 0.5, cfg.Matching.TitleWeight)
	assert.Equal(t, 0.3, cfg.Matching.ModelWeight)
	assert.Equal(t, 0.2, cfg.Matching.BrandWeight)
	assert.Equal(t, 300, cfg.Chunking.Size)
	assert.Equal(t, 75, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "tesseract", cfg.OCR.TesseractPath)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
matching:
  min_confidence: 0.8
server:
  addr: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Matching.MinConfidence)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	// Everything unset falls back to the defaults.
	assert.Equal(t, 0.5, cfg.Matching.TitleWeight)
	assert.Equal(t, 300, cfg.Chunking.Size)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
}

func TestLoad_DataDirDerivesPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/prodintel\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/prodintel", "catalog.csv"), cfg.CatalogPath)
	assert.Equal(t, filepath.Join("/srv/prodintel", "docs"), cfg.DocsDir)
	assert.Equal(t, filepath.Join("/srv/prodintel", "index"), cfg.IndexDir)
}

func TestLoad_ExplicitZerosAreKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
matching:
  min_confidence: 0
chunking:
  overlap: 0
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Zero is a valid setting for these, not a request for the default.
	assert.Equal(t, 0.0, cfg.Matching.MinConfidence)
	assert.Equal(t, 0, cfg.Chunking.Overlap)
	assert.Equal(t, 300, cfg.Chunking.Size)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matching: [not a map\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Matching.MinConfidence = 0.75
	cfg.Server.Addr = ":8081"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, got.Matching.MinConfidence)
	assert.Equal(t, ":8081", got.Server.Addr)
	assert.Equal(t, cfg.Embedding, got.Embedding)
}

func TestOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", OpenAIKey())

	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "", OpenAIKey())
}
