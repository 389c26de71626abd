package scanner

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/steveyegge/codeaudit/internal/types"
)

// File is the unit the rules operate on.
type File struct {
	// Path is repository-relative and slash-separated.
	Path     string
	Category types.FileCategory
	Content  []byte
	Lines    []string
}

// NewFile splits content into lines and classifies the path.
func NewFile(p string, content []byte) *File {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &File{
		Path:     p,
		Category: Classify(p),
		Content:  content,
		Lines:    lines,
	}
}

// Ext returns the lower-cased extension of the file.
func (f *File) Ext() string {
	return strings.ToLower(path.Ext(f.Path))
}

// Rule inspects a file and reports issues.
type Rule interface {
	ID() string
	Applies(f *File) bool
	Check(f *File) []types.Issue
}

// LineRule is a declarative, regex-per-line rule.
type LineRule struct {
	RuleID     string
	Severity   types.Severity
	Category   types.IssueCategory
	Message    string
	Suggestion string
	Pattern    *regexp.Regexp
	// Categories limits the rule to files of these categories. Empty means all.
	Categories []types.FileCategory
	// Extensions limits the rule to these extensions. Empty means all.
	Extensions []string
	// SkipComments ignores lines that start with a comment leader.
	SkipComments bool
}

func (r *LineRule) ID() string { return r.RuleID }

func (r *LineRule) Applies(f *File) bool {
	if len(r.Categories) > 0 && !containsCategory(r.Categories, f.Category) {
		return false
	}
	if len(r.Extensions) > 0 {
		ext := f.Ext()
		for _, e := range r.Extensions {
			if e == ext {
				return true
			}
		}
		return false
	}
	return true
}

func (r *LineRule) Check(f *File) []types.Issue {
	var issues []types.Issue
	for i, line := range f.Lines {
		if r.SkipComments && isCommentLine(line) {
			continue
		}
		if r.Pattern.MatchString(line) {
			issues = append(issues, types.Issue{
				File:       f.Path,
				Line:       i + 1,
				Severity:   r.Severity,
				Category:   r.Category,
				Message:    r.Message,
				RuleID:     r.RuleID,
				Suggestion: r.Suggestion,
			})
		}
	}
	return issues
}

func containsCategory(list []types.FileCategory, c types.FileCategory) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

var commentLeaders = []string{"//", "#", "/*", "*", "--", "<!--", ";"}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#!") {
		return false
	}
	for _, leader := range commentLeaders {
		if strings.HasPrefix(trimmed, leader) {
			return true
		}
	}
	return false
}

var (
	shebangShellRegex = regexp.MustCompile(`^#!\s*\S*(?:/env\s+)?\S*\b(?:ba|z|da)?sh\b`)
	shebangErrexit    = regexp.MustCompile(`^#!.*\s-[a-zA-Z]*e`)
	setErrexitRegex   = regexp.MustCompile(`^\s*set\s+(?:-[a-zA-Z]*e[a-zA-Z]*\b|-o\s+errexit\b)`)
	rmRecursiveRegex  = regexp.MustCompile(`\brm\s+(?:-[a-zA-Z]*(?:[rR]f|f[rR])[a-zA-Z]*|-[a-zA-Z]*[rR][a-zA-Z]*\s+-[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*\s+-[a-zA-Z]*[rR][a-zA-Z]*|--recursive\s+--force|--force\s+--recursive)\b`)
	pathGuardRegex    = regexp.MustCompile(`(?:\[\[?\s+-[defL]\s|\btest\s+-[defL]\s)`)
)

// failFastLookahead is how many non-comment lines may precede set -e.
const failFastLookahead = 10

// rmGuardLookbehind is how many preceding lines are searched for a guard.
const rmGuardLookbehind = 3

// missingFailFastRule flags shell scripts that never enable errexit.
type missingFailFastRule struct{}

func (missingFailFastRule) ID() string { return "missing-fail-fast" }

func (missingFailFastRule) Applies(f *File) bool {
	return f.Category == types.CategoryInfrastructure && IsShellScript(f.Path, f.Lines)
}

func (r missingFailFastRule) Check(f *File) []types.Issue {
	if len(f.Lines) > 0 && shebangErrexit.MatchString(f.Lines[0]) {
		return nil
	}
	seen := 0
	for _, line := range f.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if setErrexitRegex.MatchString(line) {
			return nil
		}
		seen++
		if seen >= failFastLookahead {
			break
		}
	}
	return []types.Issue{{
		File:       f.Path,
		Line:       1,
		Severity:   types.SeverityMedium,
		Category:   types.IssueReliability,
		Message:    "shell script does not enable fail-fast mode (set -e)",
		RuleID:     r.ID(),
		Suggestion: "add `set -euo pipefail` near the top of the script",
	}}
}

// unguardedRmRule flags recursive forced deletes with no existence check
// on the same line or shortly before.
type unguardedRmRule struct{}

func (unguardedRmRule) ID() string { return "unguarded-rm" }

func (unguardedRmRule) Applies(f *File) bool {
	return f.Category == types.CategoryInfrastructure
}

func (r unguardedRmRule) Check(f *File) []types.Issue {
	var issues []types.Issue
	for i, line := range f.Lines {
		if isCommentLine(line) {
			continue
		}
		loc := rmRecursiveRegex.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if guarded(f.Lines, i, loc[0]) {
			continue
		}
		issues = append(issues, types.Issue{
			File:       f.Path,
			Line:       i + 1,
			Severity:   types.SeverityHigh,
			Category:   types.IssueReliability,
			Message:    "recursive forced delete without a path existence guard",
			RuleID:     r.ID(),
			Suggestion: "check the target with `[ -d \"$dir\" ]` before removing it",
		})
	}
	return issues
}

func guarded(lines []string, idx, col int) bool {
	if pathGuardRegex.MatchString(lines[idx][:col]) {
		return true
	}
	for j := idx - 1; j >= 0 && j >= idx-rmGuardLookbehind; j-- {
		if pathGuardRegex.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

var infraCategories = []types.FileCategory{types.CategoryInfrastructure}
var sourceCategories = []types.FileCategory{types.CategorySource}

// DefaultRules returns the built-in rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		&LineRule{
			RuleID:     "image-latest",
			Severity:   types.SeverityMedium,
			Category:   types.IssueReliability,
			Message:    "container image pinned to the mutable :latest tag",
			Suggestion: "pin the image to a specific version or digest",
			Pattern:    regexp.MustCompile(`(?i)^\s*(?:-\s*)?(?:FROM\s+(?:--platform=\S+\s+)?|image:\s*["']?)\S+:latest\b`),
			Categories: infraCategories,
		},
		&LineRule{
			RuleID:       "privileged-container",
			Severity:     types.SeverityHigh,
			Category:     types.IssueSecurity,
			Message:      "container runs in privileged mode",
			Suggestion:   "drop privileged mode and grant only the capabilities required",
			Pattern:      regexp.MustCompile(`(?i)(?:\bprivileged:\s*true\b|--privileged\b)`),
			Categories:   infraCategories,
			SkipComments: true,
		},
		unguardedRmRule{},
		missingFailFastRule{},
		goModReplaceRule{},
		&LineRule{
			RuleID:       "go-panic",
			Severity:     types.SeverityLow,
			Category:     types.IssueReliability,
			Message:      "panic in library code",
			Suggestion:   "return an error instead of panicking",
			Pattern:      regexp.MustCompile(`\bpanic\(`),
			Categories:   sourceCategories,
			Extensions:   []string{".go"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "tls-insecure-skip-verify",
			Severity:     types.SeverityHigh,
			Category:     types.IssueSecurity,
			Message:      "TLS certificate verification disabled",
			Pattern:      regexp.MustCompile(`InsecureSkipVerify:\s*true`),
			Extensions:   []string{".go"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "sql-string-concat",
			Severity:     types.SeverityHigh,
			Category:     types.IssueSecurity,
			Message:      "SQL statement built by string concatenation",
			Suggestion:   "use parameterized queries",
			Pattern:      regexp.MustCompile(`(?i)["'` + "`" + `]\s*(?:select\s.+\sfrom|insert\s+into|update\s+\w+\s+set|delete\s+from)\b[^"'` + "`" + `]*["'` + "`" + `]\s*\+`),
			Categories:   sourceCategories,
			Extensions:   []string{".go", ".py", ".js", ".ts", ".java", ".rs", ".php", ".rb"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "shell-exec-concat",
			Severity:     types.SeverityHigh,
			Category:     types.IssueSecurity,
			Message:      "shell command built from concatenated input",
			Suggestion:   "pass arguments as a list instead of through a shell",
			Pattern:      regexp.MustCompile(`(?:exec\.Command(?:Context)?\([^)]*"(?:ba)?sh",\s*"-c",[^)]*\+|subprocess\.\w+\([^)]*shell\s*=\s*True|os\.system\([^)]*\+)`),
			Categories:   sourceCategories,
			Extensions:   []string{".go", ".py"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "weak-hash",
			Severity:     types.SeverityMedium,
			Category:     types.IssueSecurity,
			Message:      "weak hash algorithm (MD5/SHA-1)",
			Suggestion:   "use SHA-256 or stronger",
			Pattern:      regexp.MustCompile(`(?:\b(?:md5|sha1)\.(?:New|Sum)\b|hashlib\.(?:md5|sha1)\()`),
			Categories:   sourceCategories,
			Extensions:   []string{".go", ".py"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "rust-unwrap",
			Severity:     types.SeverityLow,
			Category:     types.IssueReliability,
			Message:      "unwrap() can panic at runtime",
			Suggestion:   "propagate the error with ? or handle it explicitly",
			Pattern:      regexp.MustCompile(`\.unwrap\(\)`),
			Categories:   sourceCategories,
			Extensions:   []string{".rs"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "rust-unsafe",
			Severity:     types.SeverityMedium,
			Category:     types.IssueSecurity,
			Message:      "unsafe block",
			Pattern:      regexp.MustCompile(`\bunsafe\s*\{`),
			Categories:   sourceCategories,
			Extensions:   []string{".rs"},
			SkipComments: true,
		},
		&LineRule{
			RuleID:       "py-eval",
			Severity:     types.SeverityHigh,
			Category:     types.IssueSecurity,
			Message:      "dynamic code evaluation",
			Pattern:      regexp.MustCompile(`(?:^|[^.\w])(?:eval|exec)\(`),
			Categories:   sourceCategories,
			Extensions:   []string{".py"},
			SkipComments: true,
		},
		secretRule{},
	}
}

// ruleIDs is used in error messages for unknown rule names.
func ruleIDs(rules []Rule) string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID()
	}
	return strings.Join(ids, ", ")
}

// FilterRules drops the rules named in disabled. Unknown names are an error.
func FilterRules(rules []Rule, disabled []string) ([]Rule, error) {
	if len(disabled) == 0 {
		return rules, nil
	}
	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.ID()] = true
	}
	skip := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		if !known[id] {
			return nil, fmt.Errorf("unknown rule %q (known: %s)", id, ruleIDs(rules))
		}
		skip[id] = true
	}
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !skip[r.ID()] {
			out = append(out, r)
		}
	}
	return out, nil
}
