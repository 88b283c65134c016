package services

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathFilter decides which vault paths are ignored.
type PathFilter struct {
	patterns []string
}

// NewPathFilter validates the ignore patterns.
func NewPathFilter(patterns []string) (*PathFilter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	return &PathFilter{patterns: append([]string(nil), patterns...)}, nil
}

// Ignored reports whether path matches any ignore pattern.
// A nil filter ignores nothing.
func (f *PathFilter) Ignored(path string) bool {
	if f == nil {
		return false
	}
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// IgnoredDir reports whether every path below dir is ignored, so a walker
// can skip the directory outright. Only patterns ending in "/**" qualify.
func (f *PathFilter) IgnoredDir(dir string) bool {
	if f == nil || dir == "" {
		return false
	}
	for _, p := range f.patterns {
		prefix, ok := strings.CutSuffix(p, "/**")
		if !ok {
			continue
		}
		if matched, _ := doublestar.Match(prefix, dir); matched {
			return true
		}
	}
	return false
}
