package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "iPhone\t15\n\nPro   Max", "iPhone 15 Pro Max"},
		{"strips specials", "Apple® iPhone™ 15 (Pro) Max!", "Apple iPhone 15 Pro Max"},
		{"keeps hyphens dots commas", "SM-S928, v1.2", "SM-S928, v1.2"},
		{"trims edges", "  Galaxy S24  ", "Galaxy S24"},
		{"empty", "", ""},
		{"only specials", "©®™!?", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}

func TestTesseract_MissingBinaryDegradesToEmpty(t *testing.T) {
	x := NewTesseract("definitely-not-a-real-binary")
	assert.Equal(t, "", x.ExtractText(context.Background(), []byte("not an image")))
}

func TestNewTesseract_DefaultBinary(t *testing.T) {
	x := NewTesseract("")
	assert.Equal(t, "tesseract", x.binary)
}
