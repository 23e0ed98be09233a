package matcher

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodintel/internal/catalog"
)

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()
	st, err := catalog.Read(strings.NewReader(`product_id,title,model,brand
iphone-15-pro-max,iPhone 15 Pro Max,A3105,Apple
galaxy-s24-ultra,Galaxy S24 Ultra,SM-S928,Samsung
pixel-9-pro,Pixel 9 Pro,GGX8B,Google
`))
	require.NoError(t, err)
	return st
}

func defaultConfig() Config {
	return Config{
		MinConfidence: 0.6,
		TopK:          3,
		TitleWeight:   0.5,
		ModelWeight:   0.3,
		BrandWeight:   0.2,
	}
}

func TestFindMatches_LabelTextScoresFull(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())

	// OCR text from a retail label carries title, model, and brand; every
	// field matches as a token subset, so the combined score is 1.0.
	got := m.FindMatches("Apple iPhone 15 Pro Max A3105", 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "iphone-15-pro-max", got[0].ProductID)
	assert.GreaterOrEqual(t, got[0].Score, 0.9)
}

func TestFindMatches_ExactTitleIsTopCandidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinConfidence = 0.3 // title-only text leaves model/brand sub-scores low
	m := New(testCatalog(t), cfg)

	got := m.FindMatches("Galaxy S24 Ultra", 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "galaxy-s24-ultra", got[0].ProductID)
}

func TestFindMatches_ScoresBoundedAndSorted(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())

	got := m.FindMatches("Apple iPhone 15 Pro Max A3105 box label 128GB", 3)
	for i, c := range got {
		assert.GreaterOrEqual(t, c.Score, 0.6, "candidate %d below floor", i)
		assert.LessOrEqual(t, c.Score, 1.0, "candidate %d above 1.0", i)
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].Score, c.Score, "not sorted at %d", i)
		}
	}
}

func TestFindMatches_RespectsTopK(t *testing.T) {
	cfg := defaultConfig()
	cfg.MinConfidence = 0.0
	m := New(testCatalog(t), cfg)

	got := m.FindMatches("Apple iPhone 15 Pro Max A3105", 2)
	assert.LessOrEqual(t, len(got), 2)

	got = m.FindMatches("Apple iPhone 15 Pro Max A3105", 0) // falls back to cfg.TopK
	assert.LessOrEqual(t, len(got), 3)
}

func TestFindMatches_EmptyInput(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())
	assert.Empty(t, m.FindMatches("", 3))
	assert.Empty(t, m.FindMatches("   \n ", 3))
}

func TestFindMatches_EmptyCatalog(t *testing.T) {
	m := New(catalog.Empty(), defaultConfig())
	assert.Empty(t, m.FindMatches("Apple iPhone 15 Pro Max", 3))

	m = New(nil, defaultConfig())
	assert.Empty(t, m.FindMatches("Apple iPhone 15 Pro Max", 3))
}

func TestFindMatches_NoCandidateBelowFloor(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())
	assert.Empty(t, m.FindMatches("completely unrelated washing machine manual", 3))
}

func TestFindMatches_EvidenceNamesMatchedFields(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())

	got := m.FindMatches("Apple iPhone 15 Pro Max A3105", 1)
	require.Len(t, got, 1)
	require.NotEmpty(t, got[0].Evidence)

	joined := strings.Join(got[0].Evidence, "\n")
	assert.Contains(t, joined, "Title match: iPhone 15 Pro Max")
	assert.Contains(t, joined, "Model match: A3105")
	assert.Contains(t, joined, "Brand match: Apple")
}

func TestFindMatches_CaseInsensitive(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())

	upper := m.FindMatches("APPLE IPHONE 15 PRO MAX A3105", 3)
	lower := m.FindMatches("apple iphone 15 pro max a3105", 3)
	require.NotEmpty(t, upper)
	require.NotEmpty(t, lower)
	assert.Equal(t, upper[0].ProductID, lower[0].ProductID)
	assert.Equal(t, upper[0].Score, lower[0].Score)
}

func TestValidateProductID(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())
	assert.True(t, m.ValidateProductID("pixel-9-pro"))
	assert.False(t, m.ValidateProductID(""))
	assert.False(t, m.ValidateProductID("nonexistent"))

	empty := New(catalog.Empty(), defaultConfig())
	assert.False(t, empty.ValidateProductID("pixel-9-pro"))
}

func TestProductAndCatalogSize(t *testing.T) {
	m := New(testCatalog(t), defaultConfig())
	assert.Equal(t, 3, m.CatalogSize())

	e, ok := m.Product("galaxy-s24-ultra")
	require.True(t, ok)
	assert.Equal(t, "Samsung", e.Brand)

	_, ok = m.Product("nope")
	assert.False(t, ok)
}

func TestPrefix_RuneSafe(t *testing.T) {
	long := strings.Repeat("ü", 60)
	got := prefix(long, 50)
	assert.Equal(t, strings.Repeat("ü", 50), got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "short", prefix("short", 50))
}

func TestTokenSetScore(t *testing.T) {
	assert.Equal(t, 1.0, tokenSetScore("apple iphone 15 pro max", "iphone 15 pro max"))
	assert.Equal(t, 0.0, tokenSetScore("", "iphone"))
	assert.Equal(t, 0.0, tokenSetScore("iphone", ""))
}
