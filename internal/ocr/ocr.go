// Package ocr extracts text from product images. Extraction failures are
// never surfaced to callers; they degrade to an empty string.
package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

// Extractor turns image bytes into raw text. Implementations must return ""
// on failure rather than an error.
type Extractor interface {
	ExtractText(ctx context.Context, image []byte) string
}

// Tesseract shells out to the tesseract binary.
type Tesseract struct {
	binary string
}

// NewTesseract creates an extractor using the given tesseract binary
// ("tesseract" when empty).
func NewTesseract(binary string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{binary: binary}
}

// ExtractText runs tesseract over the image and returns cleaned text, or ""
// on any failure.
func (t *Tesseract) ExtractText(ctx context.Context, image []byte) string {
	tmp, err := os.CreateTemp("", "prodintel-ocr-*")
	if err != nil {
		slog.Error("ocr temp file", "err", err)
		return ""
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		slog.Error("ocr write image", "err", err)
		return ""
	}
	tmp.Close()

	// Block layout (psm 6) works best for packaging and spec labels.
	cmd := exec.CommandContext(ctx, t.binary, tmp.Name(), "stdout", "--psm", "6")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Warn("tesseract failed", "err", err, "stderr", strings.TrimSpace(stderr.String()))
		return ""
	}

	text := CleanText(out.String())
	slog.Debug("ocr extracted text", "chars", len(text))
	return text
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	specialsRe   = regexp.MustCompile(`[^\w\s\-.,]`)
)

// CleanText collapses whitespace and strips everything but word characters,
// spaces, hyphens, dots, and commas.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = specialsRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
