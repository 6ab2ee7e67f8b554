// Package pathspec evaluates glob-style exclusion patterns against
// repo-relative paths.
package pathspec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher holds a validated set of exclusion patterns. The zero Matcher
// matches nothing.
type Matcher struct {
	patterns []string
}

// New validates every pattern and returns a Matcher. A malformed pattern
// fails here, at configuration time, not silently at match time.
func New(patterns []string) (*Matcher, error) {
	cleaned := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = filepath.ToSlash(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclusion pattern %q", pattern)
		}
		cleaned = append(cleaned, pattern)
	}
	return &Matcher{patterns: cleaned}, nil
}

// Patterns returns the validated patterns, slash-separated.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Empty reports whether no patterns are configured.
func (m *Matcher) Empty() bool { return m == nil || len(m.patterns) == 0 }

// Match reports whether the repo-relative path matches any pattern. A
// pattern naming a directory also excludes everything inside it.
func (m *Matcher) Match(path string) bool {
	if m == nil {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range m.patterns {
		if ok, err := doublestar.Match(pattern, slashPath); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern+"/**", slashPath); err == nil && ok {
			return true
		}
	}
	return false
}
