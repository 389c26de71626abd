package scanner

import (
	"fmt"
	"path"

	"golang.org/x/mod/modfile"

	"github.com/steveyegge/codeaudit/internal/types"
)

// goModReplaceRule flags go.mod replace directives that point at a local
// directory. Such builds only work on the author's machine.
type goModReplaceRule struct{}

func (goModReplaceRule) ID() string { return "gomod-local-replace" }

func (goModReplaceRule) Applies(f *File) bool {
	return path.Base(f.Path) == "go.mod"
}

func (r goModReplaceRule) Check(f *File) []types.Issue {
	mf, err := modfile.Parse(f.Path, f.Content, nil)
	if err != nil {
		// Malformed go.mod files are the toolchain's problem, not ours.
		return nil
	}
	var issues []types.Issue
	for _, rep := range mf.Replace {
		// A replacement without a version is a filesystem path.
		if rep.New.Version != "" {
			continue
		}
		line := 1
		if rep.Syntax != nil {
			line = rep.Syntax.Start.Line
		}
		issues = append(issues, types.Issue{
			File:       f.Path,
			Line:       line,
			Severity:   types.SeverityMedium,
			Category:   types.IssueMaintainability,
			Message:    fmt.Sprintf("replace directive points %s at local path %s", rep.Old.Path, rep.New.Path),
			RuleID:     r.ID(),
			Suggestion: "publish the module or use a go.work file for local development",
		})
	}
	return issues
}
