package index

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder derives a deterministic unit vector from the text's byte
// distribution, so index builds and queries are reproducible without a
// model server and texts about the same topic land near each other.
type fakeEmbedder struct {
	model string
}

func (f *fakeEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(text string) ([]float32, error) {
	const dim = 16
	vec := make([]float32, dim)
	for _, b := range []byte(text) {
		if b == ' ' {
			continue
		}
		vec[int(b)%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (f *fakeEmbedder) Model() string { return f.model }

func docText(topic string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", topic, i)
	}
	return topic + " " + strings.Join(words, " ")
}

func writeDocs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func newTestEngine(t *testing.T, docsDir, indexDir string) *Engine {
	t.Helper()
	e := New(Config{
		DocsDir:      docsDir,
		IndexDir:     indexDir,
		ChunkSize:    50,
		ChunkOverlap: 10,
		TopK:         3,
	}, &fakeEmbedder{model: "fake"})
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_EmptyCorpus(t *testing.T) {
	e := newTestEngine(t, filepath.Join(t.TempDir(), "absent"), t.TempDir())

	assert.Equal(t, 0, e.Count())
	got, err := e.Retrieve("anything", "", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_BuildAndRetrieve(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"iphone-15-pro-max.txt": docText("battery", 60),
		"galaxy-s24-ultra.txt":  docText("camera", 60),
	})
	e := newTestEngine(t, docsDir, t.TempDir())

	require.Greater(t, e.Count(), 0)

	got, err := e.Retrieve("battery battery0 battery1", "", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "iphone-15-pro-max", got[0].ProductID)
}

func TestEngine_ProductFilterNeverCrossesProducts(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"iphone-15-pro-max.txt": docText("battery", 120),
		"galaxy-s24-ultra.txt":  docText("battery", 120), // same topic, other product
	})
	e := newTestEngine(t, docsDir, t.TempDir())

	got, err := e.Retrieve("battery battery0", "galaxy-s24-ultra", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.Equal(t, "galaxy-s24-ultra", c.ProductID)
	}
}

func TestEngine_FewerThanTopK(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 30), // one chunk
	})
	e := newTestEngine(t, docsDir, t.TempDir())

	got, err := e.Retrieve("tensor", "pixel-9-pro", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestEngine_UnknownProductYieldsNothing(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 60),
	})
	e := newTestEngine(t, docsDir, t.TempDir())

	got, err := e.Retrieve("tensor", "no-such-product", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_RebuildPicksUpNewDocs(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 60),
	})
	e := newTestEngine(t, docsDir, t.TempDir())
	before := e.Count()

	writeDocs(t, docsDir, map[string]string{
		"iphone-15-pro-max.txt": docText("battery", 60),
	})
	stats, err := e.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Greater(t, e.Count(), before)

	got, err := e.Retrieve("battery", "iphone-15-pro-max", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestEngine_LoadsPersistedIndex(t *testing.T) {
	docsDir := t.TempDir()
	indexDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 60),
	})

	first := newTestEngine(t, docsDir, indexDir)
	count := first.Count()
	require.Greater(t, count, 0)
	require.NoError(t, first.Close())

	// Empty the docs dir: a fresh engine must serve from the persisted
	// index, not from a rebuild of the (now empty) corpus.
	require.NoError(t, os.Remove(filepath.Join(docsDir, "pixel-9-pro.txt")))

	second := newTestEngine(t, docsDir, indexDir)
	assert.Equal(t, count, second.Count())
}

func TestEngine_ModelMismatchForcesRebuild(t *testing.T) {
	docsDir := t.TempDir()
	indexDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 60),
	})

	first := newTestEngine(t, docsDir, indexDir)
	require.Greater(t, first.Count(), 0)
	require.NoError(t, first.Close())

	cfg := Config{DocsDir: docsDir, IndexDir: indexDir, ChunkSize: 50, ChunkOverlap: 10, TopK: 3}
	second := New(cfg, &fakeEmbedder{model: "other"})
	defer second.Close()

	assert.Greater(t, second.Count(), 0)

	got, err := second.Retrieve("tensor", "pixel-9-pro", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestEngine_ConcurrentRetrieveDuringRebuild(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"iphone-15-pro-max.txt": docText("battery", 60),
		"galaxy-s24-ultra.txt":  docText("camera", 60),
	})
	e := newTestEngine(t, docsDir, t.TempDir())
	require.Greater(t, e.Count(), 0)

	stop := make(chan struct{})
	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := e.Retrieve("battery", "", 3); err != nil {
					select {
					case errCh <- err:
					default:
					}
					return
				}
			}
		}()
	}
	var once sync.Once
	stopAll := func() {
		once.Do(func() { close(stop) })
		wg.Wait()
	}
	defer stopAll()

	for i := 0; i < 50; i++ {
		_, err := e.Rebuild()
		require.NoError(t, err, "rebuild %d", i)
	}

	stopAll()
	select {
	case err := <-errCh:
		t.Fatalf("retrieve failed during rebuild: %v", err)
	default:
	}
}

func TestEngine_EmptyDocsDirRebuildClearsState(t *testing.T) {
	docsDir := t.TempDir()
	writeDocs(t, docsDir, map[string]string{
		"pixel-9-pro.txt": docText("tensor", 60),
	})
	e := newTestEngine(t, docsDir, t.TempDir())
	require.Greater(t, e.Count(), 0)

	require.NoError(t, os.Remove(filepath.Join(docsDir, "pixel-9-pro.txt")))
	stats, err := e.Rebuild()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, e.Count())

	got, err := e.Retrieve("tensor", "", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
