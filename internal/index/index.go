// Package index coordinates building, persisting, and querying the chunk
// retrieval index for product documentation.
package index

import (
	"fmt"
	"log/slog"
	"sync"

	"prodintel/internal/chunker"
	"prodintel/internal/docs"
	"prodintel/internal/embedder"
	"prodintel/internal/store"
)

// overFetchFactor compensates for post-filtering loss when retrieval is
// restricted to a single product.
const overFetchFactor = 5

const embedBatchSize = 32

// Config holds the engine configuration.
type Config struct {
	DocsDir      string
	IndexDir     string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// Stats reports the outcome of an index build.
type Stats struct {
	Documents int
	Chunks    int
	Dimension int
}

// state pairs a vector store with its position-aligned chunk metadata.
// The pair is replaced wholesale; readers never see a torn combination.
type state struct {
	store  *store.VectorStore
	chunks []chunker.Chunk
}

// Engine embeds queries, over-fetches nearest neighbors, and filters results
// to the requested product. Safe for concurrent Retrieve calls; Rebuild is
// serialized and swaps state atomically.
type Engine struct {
	cfg      Config
	emb      embedder.Provider
	splitter *chunker.Chunker

	buildMu sync.Mutex // serializes rebuilds

	mu    sync.RWMutex
	state *state // nil until a successful build or load
}

// New creates an engine and tries to load the persisted index. On any load
// failure it falls back to a full rebuild; a failed or empty rebuild leaves
// the engine empty (retrieval returns no results) rather than failing.
func New(cfg Config, emb embedder.Provider) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	e := &Engine{
		cfg:      cfg,
		emb:      emb,
		splitter: chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
	}

	st, chunks, err := store.Open(cfg.IndexDir, emb.Model())
	if err == nil {
		e.state = &state{store: st, chunks: chunks}
		slog.Info("loaded retrieval index", "vectors", st.Count(), "dimension", st.Dimension())
		return e
	}
	slog.Info("no usable persisted index, rebuilding", "reason", err)

	if _, err := e.Rebuild(); err != nil {
		slog.Error("index rebuild failed, retrieval will return empty results", "err", err)
	}
	return e
}

// Rebuild re-reads the documentation corpus, chunks and embeds it, persists
// the new index, and atomically replaces the in-memory state. It is
// idempotent; concurrent calls are serialized. Zero chunks is a valid
// outcome that leaves the engine empty.
func (e *Engine) Rebuild() (*Stats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	documents, err := docs.Walk(e.cfg.DocsDir)
	if err != nil {
		return nil, fmt.Errorf("scan docs: %w", err)
	}

	var chunks []chunker.Chunk
	for _, d := range documents {
		chunks = append(chunks, e.splitter.Split(d.Content, d.ProductID, d.Source)...)
	}
	slog.Info("chunked documentation", "documents", len(documents), "chunks", len(chunks))

	if len(chunks) == 0 {
		e.swap(nil)
		return &Stats{Documents: len(documents)}, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}
		embs, err := e.emb.Embed(texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		vectors = append(vectors, embs...)
	}

	st, err := store.Build(e.cfg.IndexDir, chunks, vectors, e.emb.Model())
	if err != nil {
		return nil, fmt.Errorf("build vector index: %w", err)
	}

	e.swap(&state{store: st, chunks: chunks})
	slog.Info("retrieval index rebuilt", "vectors", st.Count(), "dimension", st.Dimension())
	return &Stats{Documents: len(documents), Chunks: len(chunks), Dimension: st.Dimension()}, nil
}

// Retrieve embeds the query and returns up to topK chunks, most relevant
// first. With a product id it over-fetches and skips chunks belonging to
// other products; it may return fewer than topK. An empty or uninitialized
// index yields nil without error.
func (e *Engine) Retrieve(query, productID string, topK int) ([]chunker.Chunk, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	// The read lock is held across the search so a concurrent rebuild
	// cannot close this store mid-query; the swap's write lock waits for
	// all in-flight retrievals to finish.
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.state
	if s == nil || s.store.Count() == 0 {
		return nil, nil
	}

	vec, err := e.emb.EmbedSingle(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetchK := topK
	if productID != "" {
		fetchK = overFetchFactor * topK
	}
	hits, err := s.store.Search(vec, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var results []chunker.Chunk
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(s.chunks) {
			continue
		}
		c := s.chunks[h.Position]
		if productID != "" && c.ProductID != productID {
			continue
		}
		results = append(results, c)
		if len(results) >= topK {
			break
		}
	}
	return results, nil
}

// Count returns the number of indexed vectors, 0 when uninitialized.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return 0
	}
	return e.state.store.Count()
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil
	}
	err := e.state.store.Close()
	e.state = nil
	return err
}

// swap publishes the new state and closes the old store. Acquiring the
// write lock waits out every retrieval that holds the read lock, so by the
// time the old store is closed nothing is searching it.
func (e *Engine) swap(next *state) {
	e.mu.Lock()
	old := e.state
	e.state = next
	e.mu.Unlock()
	if old != nil {
		old.store.Close()
	}
}
