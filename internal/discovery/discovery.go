// Package discovery provides a lazy, breadth-first sequence of file
// paths rooted at a file or directory.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/autocomp/autocomp/internal/apperr"
)

// Iterator yields absolute file paths in breadth-first order: all
// entries of a directory are yielded (files) or enqueued
// (subdirectories) before any subdirectory is descended into.
// Symbolic links are followed as files. Unreadable subdirectories
// encountered mid-traversal are skipped rather than failing the whole
// walk.
type Iterator struct {
	dirQueue []string
	pending  []string
}

// New roots an Iterator at path. Fails with IOError if path does not
// exist or is not accessible.
func New(path string) (*Iterator, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &apperr.IOError{Msg: fmt.Sprintf("cannot access %s", path), Underlying: err}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if !info.IsDir() {
		return &Iterator{pending: []string{path}}, nil
	}
	return &Iterator{dirQueue: []string{path}}, nil
}

// Next returns the next file path, or ok=false once the walk is
// exhausted.
func (it *Iterator) Next() (path string, ok bool) {
	for {
		if len(it.pending) > 0 {
			path = it.pending[0]
			it.pending = it.pending[1:]
			return path, true
		}
		if len(it.dirQueue) == 0 {
			return "", false
		}
		dir := it.dirQueue[0]
		it.dirQueue = it.dirQueue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // unreadable subdirectory: skip
		}
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				it.dirQueue = append(it.dirQueue, full)
			} else {
				it.pending = append(it.pending, full)
			}
		}
	}
}

// All drains the iterator into a slice. Convenience for callers that
// don't need streaming semantics (tests, small trees).
func All(it *Iterator) []string {
	var out []string
	for {
		p, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, p)
	}
}
