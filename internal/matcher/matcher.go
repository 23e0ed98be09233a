package matcher

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"prodintel/internal/catalog"
)

// evidenceThreshold is the per-field score above which a field contributes
// a human-readable evidence line.
const evidenceThreshold = 0.6

// Config tunes candidate scoring and filtering.
type Config struct {
	MinConfidence float64
	TopK          int
	TitleWeight   float64
	ModelWeight   float64
	BrandWeight   float64
}

// Candidate is a scored catalog match for a piece of extracted text.
type Candidate struct {
	ProductID string   `json:"product_id"`
	Title     string   `json:"title"`
	Score     float64  `json:"score"`
	Evidence  []string `json:"evidence"`
}

// Matcher scores raw OCR text against every catalog row using weighted
// token-set similarity. Safe for concurrent use once constructed.
type Matcher struct {
	catalog *catalog.Store
	cfg     Config
}

// New creates a matcher over the given catalog. A nil catalog yields a
// matcher that always returns empty results.
func New(cat *catalog.Store, cfg Config) *Matcher {
	if cat == nil {
		cat = catalog.Empty()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Matcher{catalog: cat, cfg: cfg}
}

// FindMatches returns up to topK candidates whose combined score clears the
// configured confidence floor, highest score first. Ties keep catalog order.
// Empty input or an empty catalog yields an empty result, not an error.
func (m *Matcher) FindMatches(text string, topK int) []Candidate {
	if topK <= 0 {
		topK = m.cfg.TopK
	}
	if strings.TrimSpace(text) == "" || m.catalog.Len() == 0 {
		return nil
	}

	normalized := strings.ToLower(strings.TrimSpace(text))

	var candidates []Candidate
	for _, p := range m.catalog.Entries() {
		titleScore := tokenSetScore(normalized, p.Title)
		modelScore := tokenSetScore(normalized, p.Model)
		brandScore := tokenSetScore(normalized, p.Brand)

		combined := titleScore*m.cfg.TitleWeight +
			modelScore*m.cfg.ModelWeight +
			brandScore*m.cfg.BrandWeight
		if combined < m.cfg.MinConfidence {
			continue
		}

		var evidence []string
		if titleScore > evidenceThreshold {
			evidence = append(evidence, fmt.Sprintf("Title match: %s (%.2f)", p.Title, titleScore))
		}
		if modelScore > evidenceThreshold {
			evidence = append(evidence, fmt.Sprintf("Model match: %s (%.2f)", p.Model, modelScore))
		}
		if brandScore > evidenceThreshold {
			evidence = append(evidence, fmt.Sprintf("Brand match: %s (%.2f)", p.Brand, brandScore))
		}
		if len(evidence) == 0 {
			evidence = []string{fmt.Sprintf("OCR: %s", prefix(text, 50))}
		}

		candidates = append(candidates, Candidate{
			ProductID: p.ProductID,
			Title:     p.Title,
			Score:     round3(combined),
			Evidence:  evidence,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	slog.Debug("matched products", "count", len(candidates), "min_confidence", m.cfg.MinConfidence)
	return candidates
}

// ValidateProductID reports whether the product id exists in the catalog.
// Always false for a matcher built over an empty catalog.
func (m *Matcher) ValidateProductID(id string) bool {
	return m.catalog.Has(id)
}

// Product returns the catalog entry for a product id.
func (m *Matcher) Product(id string) (catalog.Entry, bool) {
	return m.catalog.Get(id)
}

// CatalogSize returns the number of loaded catalog entries.
func (m *Matcher) CatalogSize() int { return m.catalog.Len() }

// Entries returns all catalog entries in load order.
func (m *Matcher) Entries() []catalog.Entry { return m.catalog.Entries() }

// tokenSetScore computes order- and duplicate-insensitive token-set
// similarity between the normalized input and a catalog field, in [0,1].
func tokenSetScore(normalized, field string) float64 {
	field = strings.ToLower(field)
	if normalized == "" || field == "" {
		return 0
	}
	return float64(fuzzy.TokenSetRatio(normalized, field)) / 100.0
}

// prefix truncates to n characters, not bytes, so multibyte OCR text is
// never cut mid-rune.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
