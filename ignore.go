package main

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreSet holds the paths that never trigger a reload.
//
// Paths match by exact string equality after normalization, so a file inside
// an ignored directory is not ignored unless it is listed itself. Glob
// patterns are only consulted when configured through ignore_patterns.
type IgnoreSet struct {
	paths    map[string]struct{}
	patterns []string
}

// NewIgnoreSet builds an IgnoreSet from exact paths and doublestar patterns.
func NewIgnoreSet(paths, patterns []string) (*IgnoreSet, error) {
	set := &IgnoreSet{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		set.paths[normalizePath(p)] = struct{}{}
	}
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
		set.patterns = append(set.patterns, pattern)
	}
	return set, nil
}

// Match reports whether path is ignored.
func (s *IgnoreSet) Match(path string) bool {
	normalized := normalizePath(path)
	if _, ok := s.paths[normalized]; ok {
		return true
	}
	if len(s.patterns) == 0 {
		return false
	}
	slashed := filepath.ToSlash(normalized)
	for _, pattern := range s.patterns {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

// Len returns the number of exact paths in the set.
func (s *IgnoreSet) Len() int {
	return len(s.paths)
}

// normalizePath collapses redundant separators and dot elements.
func normalizePath(path string) string {
	return filepath.Clean(path)
}
