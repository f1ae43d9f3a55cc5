// Package fileutil resolves script paths on case-sensitive file systems.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFile searches dir in fsys for a regular file named filename,
// ignoring case. The returned path uses forward slashes, as fs.FS does.
func FindFile(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			if dir == "." {
				return entry.Name(), nil
			}
			return dir + "/" + entry.Name(), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// ResolvePath returns path unchanged when it exists. Otherwise it looks
// for a file in the same directory whose name differs only in case, so
// that "MAIN.LB" still finds "main.lb".
func ResolvePath(path string) (string, error) {
	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	found, findErr := FindFile(os.DirFS(dir), ".", name)
	if findErr != nil {
		return "", err
	}
	return filepath.Join(dir, found), nil
}
