// Package chunker splits product documentation into fixed-size, overlapping
// word windows suitable for embedding and retrieval.
package chunker

import "strings"

// minChunkWords is the floor below which a (final, truncated) window is
// discarded instead of being indexed.
const minChunkWords = 20

// Chunk is one overlapping slice of a document's words, tagged with the
// product it documents and the file it came from.
type Chunk struct {
	Text      string `json:"text"`
	ProductID string `json:"product_id"`
	Source    string `json:"source"`
}

// Chunker produces deterministic word-window chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker with the given window size and overlap, in words.
// Invalid values fall back to 300/75.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured window size in words.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split slides a window of size words with stride size-overlap across the
// document's whitespace-separated words. Every start index below the word
// count produces a window, so trailing windows that begin inside the last
// full one are kept too. Each window is rejoined with single spaces; windows
// shorter than minChunkWords are dropped. The output is bit-for-bit
// identical across runs for the same input and configuration.
func (c *Chunker) Split(text, productID, source string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []Chunk
	for i := 0; i < len(words); i += stride {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		if end-i < minChunkWords {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:      strings.Join(words[i:end], " "),
			ProductID: productID,
			Source:    source,
		})
	}
	return chunks
}
