// Package docs discovers product documentation files on disk.
package docs

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one documentation file for a single product. The product id
// is the file name without its extension.
type Document struct {
	ProductID string
	Source    string
	Content   string
}

// maxDocSize is the largest documentation file we'll read (4 MB).
const maxDocSize = 4 << 20

// allowedExts are the documentation file types picked up by Walk.
var allowedExts = map[string]bool{
	"txt": true,
	"md":  true,
}

// Walk traverses the docs directory (recursively) and returns the documents
// found, sorted by source name for deterministic index builds. A missing
// directory degrades to an empty corpus rather than an error.
func Walk(root string) ([]Document, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("docs directory not found", "dir", root)
			return nil, nil
		}
		return nil, err
	}

	var out []Document
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if !allowedExts[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 || info.Size() > maxDocSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable document", "path", path, "err", err)
			return nil
		}
		name := d.Name()
		out = append(out, Document{
			ProductID: strings.TrimSuffix(name, filepath.Ext(name)),
			Source:    name,
			Content:   string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// WalkDir is lexical per directory, but keep a global order so the
	// chunk sequence (and therefore the vector ids) is stable.
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}
