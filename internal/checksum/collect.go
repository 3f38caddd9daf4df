// Package checksum provides file collection and concurrent checksumming
// that reports through a progress.Tracker.
package checksum

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// File is a regular file selected for checksumming.
type File struct {
	// Path is the path as found while walking
	Path string

	// Rel is the slash-separated path relative to the walked root
	Rel string

	// Size in bytes at collection time
	Size int64
}

// Collect returns the regular files under root in lexical order.
// If include is not empty, only files whose relative path matches one of
// the doublestar patterns are returned. If root is a file, it is returned
// alone and include is ignored.
func Collect(ctx context.Context, root string, include []string) ([]File, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern %q", pattern)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return []File{{Path: root, Rel: filepath.Base(root), Size: info.Size()}}, nil
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matches(include, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{Path: path, Rel: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// TotalSize returns the sum of the file sizes.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

func matches(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
