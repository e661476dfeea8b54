package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Index is the external project file listing discovery ranks against.
// Paths are relative to the project root, slash-separated, sorted.
type Index struct {
	Root  string
	Files []string
}

// maxIndexFiles caps indexing on pathological trees
const maxIndexFiles = 20000

// BuildIndex walks the project root once and returns the file listing
// shared by discovery and the extractors.
func BuildIndex(ctx context.Context, root string, excludes []string) (*Index, error) {
	excluded := make(map[string]bool, len(excludes))
	for _, e := range excludes {
		excluded[e] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if excluded[d.Name()] && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) > maxIndexFiles {
			return fmt.Errorf("project exceeds %d files, refusing to index", maxIndexFiles)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index project %s: %w", root, err)
	}

	sort.Strings(files)
	return &Index{Root: root, Files: files}, nil
}
