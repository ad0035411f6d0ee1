// Package filex spools streams to local temporary files.
package filex

import (
	"fmt"
	"io"
	"os"
)

// Spool copies src into a new file created in dir (the system temp dir when
// empty) using pattern as in os.CreateTemp. It returns the file path and a
// cleanup func that removes the file. Nothing is left behind on failure.
func Spool(dir, pattern string, src io.Reader) (string, func(), error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("spool %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close %s: %w", path, err)
	}
	return path, cleanup, nil
}

// SpoolDir creates a private working directory and returns it with a
// cleanup func that removes it recursively.
func SpoolDir(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("mkdir temp: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
