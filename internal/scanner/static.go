package scanner

import (
	"sort"

	"github.com/steveyegge/codeaudit/internal/types"
)

// StaticScanner runs a rule table over files. It holds no mutable state and
// is safe for concurrent use.
type StaticScanner struct {
	rules []Rule
}

// NewStaticScanner creates a scanner with the given rules, or the default
// table when rules is nil.
func NewStaticScanner(rules []Rule) *StaticScanner {
	if rules == nil {
		rules = DefaultRules()
	}
	return &StaticScanner{rules: rules}
}

// Rules returns the active rule table.
func (s *StaticScanner) Rules() []Rule {
	return s.rules
}

// Analyze returns the issues found in f ordered by line. Issues on the same
// line keep rule-table order.
func (s *StaticScanner) Analyze(f *File) []types.Issue {
	var issues []types.Issue
	for _, rule := range s.rules {
		if !rule.Applies(f) {
			continue
		}
		issues = append(issues, rule.Check(f)...)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Line < issues[j].Line
	})
	return issues
}
