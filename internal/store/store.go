// Package store persists chunk vectors in a sqlite-vec database alongside a
// JSON metadata file, and serves nearest-neighbor lookups over L2 distance.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"prodintel/internal/chunker"
)

func init() {
	sqlite_vec.Auto()
}

// The index directory holds two companion artifacts: the nearest-neighbor
// structure and the parallel chunk metadata sequence, aligned by position.
// A partial pair is a corruption state; Open refuses it and callers rebuild.
const (
	VectorsFile = "vectors.db"
	ChunksFile  = "chunks.json"
)

// ErrModelMismatch is returned by Open when the persisted index was built
// with a different embedding model than the one configured now.
var ErrModelMismatch = fmt.Errorf("index built with a different embedding model")

// Hit is one nearest-neighbor result: the chunk position and its distance.
type Hit struct {
	Position int
	Distance float64
}

// VectorStore is a read-only view over a built index. Safe for concurrent
// Search calls; the only mutation is wholesale replacement via Build.
type VectorStore struct {
	db        *sql.DB
	dimension int
	count     int
	model     string
}

// Build embeds nothing itself — it takes chunks with their already-computed
// vectors (position-aligned), writes both artifacts under dir, and returns
// an open store. The new database is staged under a temporary name and both
// artifacts are published by rename, so a store already open on the previous
// index keeps serving its own (unlinked) files until it is closed.
func Build(dir string, chunks []chunker.Chunk, vectors [][]float32, model string) (*VectorStore, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("mismatched chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("zero-dimension embedding")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := filepath.Join(dir, VectorsFile+".tmp")
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale build: %w", err)
	}
	if err := buildDB(tmpPath, vectors, dim, model); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	if err := writeChunks(filepath.Join(dir, ChunksFile), chunks); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	dbPath := filepath.Join(dir, VectorsFile)
	if err := os.Rename(tmpPath, dbPath); err != nil {
		return nil, fmt.Errorf("publish index: %w", err)
	}

	db, err := openPinned(dbPath)
	if err != nil {
		return nil, err
	}
	return &VectorStore{db: db, dimension: dim, count: len(chunks), model: model}, nil
}

// openPinned opens the database on a single, eagerly-established connection.
// database/sql otherwise opens connections lazily by path, which would let a
// store drift onto a newer index renamed into place after this open.
func openPinned(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open index db: %w", err)
	}
	return db, nil
}

// buildDB writes a complete vector database at path and closes it.
func buildDB(path string, vectors [][]float32, dim int, model string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open index db: %w", err)
	}
	defer db.Close()

	ddl := fmt.Sprintf(`
CREATE VIRTUAL TABLE vec_chunks USING vec0(
    embedding float[%d]
);
CREATE TABLE meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`, dim)
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("init index schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_chunks (rowid, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		blob, err := sqlite_vec.SerializeFloat32(v)
		if err != nil {
			return fmt.Errorf("serialize vector %d: %w", i, err)
		}
		// rowids are 1-based; position = rowid - 1.
		if _, err := stmt.Exec(i+1, blob); err != nil {
			return fmt.Errorf("insert vector %d: %w", i, err)
		}
	}

	for key, value := range map[string]string{
		"dimension":       fmt.Sprint(dim),
		"count":           fmt.Sprint(len(vectors)),
		"embedding_model": model,
	} {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
	}
	return tx.Commit()
}

// Open loads both artifacts from dir. It fails if either file is absent or
// unreadable, if the vector count disagrees with the chunk count, or if the
// index was built with a different embedding model (ErrModelMismatch).
// Callers respond to any Open failure with a full rebuild.
func Open(dir, wantModel string) (*VectorStore, []chunker.Chunk, error) {
	dbPath := filepath.Join(dir, VectorsFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("index file: %w", err)
	}
	chunks, err := readChunks(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, nil, err
	}

	db, err := openPinned(dbPath)
	if err != nil {
		return nil, nil, err
	}

	meta, err := readMeta(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var count int
	if err := db.QueryRow("SELECT count(*) FROM vec_chunks").Scan(&count); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("count vectors: %w", err)
	}
	if count != len(chunks) {
		db.Close()
		return nil, nil, fmt.Errorf("index has %d vectors but metadata has %d chunks", count, len(chunks))
	}

	var dim int
	if _, err := fmt.Sscan(meta["dimension"], &dim); err != nil || dim <= 0 {
		db.Close()
		return nil, nil, fmt.Errorf("invalid index dimension %q", meta["dimension"])
	}
	if wantModel != "" && meta["embedding_model"] != wantModel {
		db.Close()
		return nil, nil, fmt.Errorf("%w: have %q, want %q", ErrModelMismatch, meta["embedding_model"], wantModel)
	}

	return &VectorStore{db: db, dimension: dim, count: count, model: meta["embedding_model"]}, chunks, nil
}

// Search returns the k nearest chunk positions to the query vector,
// distance ascending.
func (s *VectorStore) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}
	rows, err := s.db.Query(`
		SELECT rowid, distance
		FROM vec_chunks
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var rowid int
		var dist float64
		if err := rows.Scan(&rowid, &dist); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Position: rowid - 1, Distance: dist})
	}
	return hits, rows.Err()
}

// Dimension returns the vector dimension of the index.
func (s *VectorStore) Dimension() int { return s.dimension }

// Count returns the number of stored vectors.
func (s *VectorStore) Count() int { return s.count }

// Model returns the embedding model recorded at build time.
func (s *VectorStore) Model() string { return s.model }

// Close releases the underlying database.
func (s *VectorStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func writeChunks(path string, chunks []chunker.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("marshal chunk metadata: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write chunk metadata: %w", err)
	}
	return os.Rename(tmp, path)
}

func readChunks(path string) ([]chunker.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk metadata: %w", err)
	}
	var chunks []chunker.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunk metadata: %w", err)
	}
	return chunks, nil
}

func readMeta(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT key, value FROM meta")
	if err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}
