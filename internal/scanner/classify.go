// Package scanner classifies files and runs the pattern-based static rules
// over them.
package scanner

import (
	"path"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

var docExtensions = map[string]bool{
	".md":   true,
	".rst":  true,
	".txt":  true,
	".adoc": true,
}

var infraExtensions = map[string]bool{
	".sh":   true,
	".bash": true,
	".tf":   true,
	".hcl":  true,
	".yaml": true,
	".yml":  true,
	".toml": true,
}

var infraNames = map[string]bool{
	"dockerfile":     true,
	"makefile":       true,
	"go.mod":         true,
	"jenkinsfile":    true,
	"procfile":       true,
	"vagrantfile":    true,
	".gitlab-ci.yml": true,
}

var docNames = map[string]bool{
	"readme":       true,
	"license":      true,
	"changelog":    true,
	"contributing": true,
	"authors":      true,
}

// Classify assigns a category to a repository-relative, slash-separated path.
// Documentation wins over test, test over infrastructure; everything else is
// source.
func Classify(p string) types.FileCategory {
	p = strings.ToLower(path.Clean(strings.ReplaceAll(p, "\\", "/")))
	base := path.Base(p)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	switch {
	case docExtensions[ext], docNames[stem], hasDir(p, "docs"), hasDir(p, "doc"):
		return types.CategoryDocumentation
	case isTestPath(p, base, stem):
		return types.CategoryTest
	case isInfraPath(p, base, ext):
		return types.CategoryInfrastructure
	}
	return types.CategorySource
}

func isTestPath(p, base, stem string) bool {
	if hasDir(p, "test") || hasDir(p, "tests") || hasDir(p, "testdata") ||
		hasDir(p, "__tests__") || hasDir(p, "spec") {
		return true
	}
	return strings.HasSuffix(stem, "_test") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(stem, ".test") ||
		strings.HasSuffix(stem, ".spec")
}

func isInfraPath(p, base, ext string) bool {
	if infraNames[base] || infraExtensions[ext] {
		return true
	}
	if strings.HasPrefix(base, "dockerfile") || strings.HasSuffix(base, ".dockerfile") {
		return true
	}
	if strings.HasPrefix(base, "docker-compose") || strings.HasPrefix(base, "compose.") {
		return true
	}
	return strings.Contains(p, ".github/workflows/") || hasDir(p, "deploy") || hasDir(p, "k8s")
}

// hasDir reports whether dir appears as a full directory component of p.
func hasDir(p, dir string) bool {
	return strings.HasPrefix(p, dir+"/") || strings.Contains(p, "/"+dir+"/")
}

// IsShellScript reports whether the file is a shell script by extension or
// shebang.
func IsShellScript(p string, lines []string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == ".sh" || ext == ".bash" {
		return true
	}
	if len(lines) == 0 {
		return false
	}
	return shebangShellRegex.MatchString(lines[0])
}
