package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/tasks"
	"github.com/steveyegge/codeaudit/internal/types"
)

type jsonSummary struct {
	Files      int                    `json:"files"`
	Skipped    scanner.SkipStats      `json:"skipped"`
	BySeverity map[types.Severity]int `json:"by_severity"`
}

type jsonLLM struct {
	*LLMSummary
	BudgetStatus string `json:"budget_status"`
}

type jsonReport struct {
	Kind    Kind                 `json:"kind"`
	Target  string               `json:"target"`
	Run     *types.Run           `json:"run,omitempty"`
	Summary *jsonSummary         `json:"summary,omitempty"`
	Files   []types.FileAnalysis `json:"files,omitempty"`
	Tags    []types.AuditTag     `json:"tags,omitempty"`
	Tasks   *tasks.Result        `json:"tasks,omitempty"`
	LLM     *jsonLLM             `json:"llm,omitempty"`
}

func writeJSON(w io.Writer, r *Report) error {
	out := jsonReport{Kind: r.Kind, Target: r.Target, Run: r.Run}

	switch r.Kind {
	case KindStatic, KindAudit:
		out.Summary = &jsonSummary{
			Files:      len(r.Files),
			Skipped:    r.Skipped,
			BySeverity: SeverityCounts(r.Files),
		}
		out.Files = nonEmptyFiles(r.Files)
	case KindTags:
		out.Tags = r.Tags
		if out.Tags == nil {
			out.Tags = []types.AuditTag{}
		}
	}
	if r.Kind == KindTasks || r.Kind == KindAudit {
		out.Tasks = r.Tasks
		if out.Tasks == nil {
			out.Tasks = &tasks.Result{Tasks: []types.Task{}, Stats: tasks.ComputeStats(nil)}
		}
	}
	if r.LLM != nil {
		out.LLM = &jsonLLM{LLMSummary: r.LLM, BudgetStatus: r.LLM.Budget.String()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}
	return nil
}

// nonEmptyFiles keeps files that carry issues or tags.
func nonEmptyFiles(files []types.FileAnalysis) []types.FileAnalysis {
	out := []types.FileAnalysis{}
	for _, fa := range files {
		if len(fa.Issues) > 0 || len(fa.Tags) > 0 {
			out = append(out, fa)
		}
	}
	return out
}
