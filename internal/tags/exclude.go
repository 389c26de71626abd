package tags

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExclusionPolicy decides which paths are never scanned for tags.
type ExclusionPolicy interface {
	Excluded(path string) bool
}

// DefaultExcludes keeps the scanner from reporting its own marker table,
// the type definitions that name the markers, and test fixtures.
var DefaultExcludes = []string{
	"**/internal/tags/**",
	"**/internal/types/**",
	"**/*_test.go",
	"**/*_test.*",
	"**/test_*",
	"**/test/**",
	"**/tests/**",
	"**/testdata/**",
	"**/fixtures/**",
}

// GlobPolicy excludes paths matching any of a list of doublestar globs.
type GlobPolicy struct {
	patterns []string
}

// NewGlobPolicy validates the patterns and builds a policy.
func NewGlobPolicy(patterns []string) (*GlobPolicy, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &GlobPolicy{patterns: append([]string(nil), patterns...)}, nil
}

// DefaultPolicy returns a policy built from DefaultExcludes.
func DefaultPolicy() *GlobPolicy {
	return &GlobPolicy{patterns: append([]string(nil), DefaultExcludes...)}
}

// Excluded reports whether path matches any pattern. Paths are compared in
// slash form.
func (g *GlobPolicy) Excluded(path string) bool {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
	for _, p := range g.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the configured globs.
func (g *GlobPolicy) Patterns() []string {
	return append([]string(nil), g.patterns...)
}

// NoExclusions is a policy that excludes nothing.
type NoExclusions struct{}

func (NoExclusions) Excluded(string) bool { return false }
