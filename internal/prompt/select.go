package prompt

import (
	"sort"

	"github.com/steveyegge/codeaudit/internal/types"
)

// SelectFiles picks up to limit source and infrastructure files for LLM
// review. Files with critical or high issues, or freeze or security tags,
// come first, then by issue count and path. A limit <= 0 selects all.
func SelectFiles(files []types.FileAnalysis, limit int) []string {
	type candidate struct {
		path   string
		urgent bool
		issues int
	}
	var cands []candidate
	for i := range files {
		fa := &files[i]
		if fa.Category != types.CategorySource && fa.Category != types.CategoryInfrastructure {
			continue
		}
		sev := fa.MaxSeverity()
		urgent := sev == types.SeverityCritical || sev == types.SeverityHigh ||
			fa.HasTag(types.TagFreeze) || fa.HasTag(types.TagSecurity)
		cands = append(cands, candidate{path: fa.Path, urgent: urgent, issues: len(fa.Issues)})
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.urgent != b.urgent {
			return a.urgent
		}
		if a.issues != b.issues {
			return a.issues > b.issues
		}
		return a.path < b.path
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.path
	}
	return out
}
