package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Entry is one catalog row describing a physical product.
type Entry struct {
	ProductID string
	Title     string
	Model     string
	Brand     string
}

// Store holds the product catalog in memory. It is read-only after Load.
type Store struct {
	entries []Entry
	byID    map[string]int
}

// Load reads a CSV catalog with the header product_id,title,model,brand.
// Malformed rows are logged and skipped rather than failing the load.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses catalog CSV from r.
func Read(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // validate per row so bad rows can be skipped

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Empty(), nil
		}
		return nil, fmt.Errorf("read catalog header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"product_id", "title", "model", "brand"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("catalog missing column %q", required)
		}
	}

	st := Empty()
	line := 1
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed catalog row", "line", line, "err", err)
			continue
		}
		if len(rec) < len(header) {
			slog.Warn("skipping short catalog row", "line", line, "fields", len(rec))
			continue
		}
		e := Entry{
			ProductID: strings.TrimSpace(rec[col["product_id"]]),
			Title:     strings.TrimSpace(rec[col["title"]]),
			Model:     strings.TrimSpace(rec[col["model"]]),
			Brand:     strings.TrimSpace(rec[col["brand"]]),
		}
		if e.ProductID == "" {
			slog.Warn("skipping catalog row with empty product_id", "line", line)
			continue
		}
		if _, dup := st.byID[e.ProductID]; dup {
			slog.Warn("skipping duplicate product_id", "line", line, "product_id", e.ProductID)
			continue
		}
		st.byID[e.ProductID] = len(st.entries)
		st.entries = append(st.entries, e)
	}
	return st, nil
}

// Empty returns a store with no entries.
func Empty() *Store {
	return &Store{byID: make(map[string]int)}
}

// Entries returns all catalog rows in load order. The returned slice must
// not be mutated.
func (s *Store) Entries() []Entry { return s.entries }

// Get returns the entry for a product id.
func (s *Store) Get(id string) (Entry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Has reports whether the product id exists in the catalog.
func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of catalog entries.
func (s *Store) Len() int { return len(s.entries) }
