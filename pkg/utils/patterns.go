package utils

import (
	"path/filepath"
	"strings"
)

// ExclusionMatcher decides which paths a file watcher ignores. Patterns
// match a path's base name with filepath.Match syntax, so a watcher that
// never descends into an excluded directory ignores its contents too.
// Excluded directories match themselves and everything beneath them.
type ExclusionMatcher struct {
	patterns []string
	dirs     []string
}

// NewExclusionMatcher creates a matcher over the given base-name patterns
func NewExclusionMatcher(patterns []string) (*ExclusionMatcher, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, err
		}
	}
	return &ExclusionMatcher{patterns: append([]string(nil), patterns...)}, nil
}

// ExcludeDir ignores dir and everything beneath it
func (em *ExclusionMatcher) ExcludeDir(dir string) {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	em.dirs = append(em.dirs, filepath.Clean(dir))
}

// IsExcluded checks if a path should be excluded
func (em *ExclusionMatcher) IsExcluded(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	for _, dir := range em.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, p := range em.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// FilterPaths removes excluded paths from a list
func (em *ExclusionMatcher) FilterPaths(paths []string) []string {
	var filtered []string
	for _, path := range paths {
		if !em.IsExcluded(path) {
			filtered = append(filtered, path)
		}
	}
	return filtered
}

// GetDefaultExclusions returns the version control, editor and OS litter
// that never affects a build
func GetDefaultExclusions() []string {
	return []string{
		".git",
		".svn",
		".hg",
		".idea",
		".vscode",
		"*.swp",
		"*.swo",
		"*~",
		".#*",
		".DS_Store",
		"Thumbs.db",
		"*.tmp",
		"*.bak",
	}
}
