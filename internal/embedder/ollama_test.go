package embedder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodintel/internal/config"
)

func configStub(provider string) config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: provider, Model: "m", OllamaURL: "http://localhost:11434"}
}

func TestOllamaEmbed(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")
	vecs, err := e.Embed([]string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
	assert.Equal(t, []float32{0.3, 0.4}, vecs[1])

	assert.Equal(t, "nomic-embed-text", gotReq.Model)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
}

func TestOllamaEmbed_EmptyInput(t *testing.T) {
	e := NewOllamaEmbedder("http://unused", "m")
	vecs, err := e.Embed(nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestOllamaEmbed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m")
	_, err := e.Embed([]string{"a", "b"})
	assert.Error(t, err)
}

func TestOllamaEmbed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m")
	_, err := e.Embed([]string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 2, 3}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m")
	vec, err := e.EmbedSingle("hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestFromConfig_UnknownProvider(t *testing.T) {
	_, err := FromConfig(configStub("watsonx"))
	assert.Error(t, err)
}

func TestFromConfig_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := FromConfig(configStub("openai"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestFromConfig_DefaultsToOllama(t *testing.T) {
	p, err := FromConfig(configStub(""))
	require.NoError(t, err)
	assert.IsType(t, &OllamaEmbedder{}, p)
}
