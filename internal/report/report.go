// Package report renders scan, tag, task and audit results as text, JSON,
// CSV or SARIF.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/tasks"
	"github.com/steveyegge/codeaudit/internal/types"
)

// Format is an output encoding.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatSARIF Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatCSV, FormatSARIF}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(strings.TrimSpace(s)) {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("invalid format %q (want %s)", s, strings.Join(names, ", "))
}

// Kind selects which part of a Report is rendered.
type Kind string

const (
	KindStatic Kind = "static"
	KindTags   Kind = "tags"
	KindTasks  Kind = "tasks"
	KindAudit  Kind = "audit"
)

// LLMSummary describes the LLM review part of an audit.
type LLMSummary struct {
	Provider     string            `json:"provider"`
	Model        string            `json:"model,omitempty"`
	Batches      int               `json:"batches"`
	Parsed       int               `json:"parsed"`
	Failed       int               `json:"failed"`
	Skipped      int               `json:"skipped"`
	Cached       int               `json:"cached"`
	BudgetHalted bool              `json:"budget_halted,omitempty"`
	Canceled     bool              `json:"canceled,omitempty"`
	Budget       cost.BudgetStatus `json:"-"`
	Totals       cost.Totals       `json:"totals"`
	Dumps        []string          `json:"dumps,omitempty"`
}

// Report is everything a command may render.
type Report struct {
	Kind    Kind
	Target  string
	Run     *types.Run
	Files   []types.FileAnalysis
	Skipped scanner.SkipStats
	Tags    []types.AuditTag
	Tasks   *tasks.Result
	LLM     *LLMSummary
}

// Write renders r to w in the given format.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatText:
		return writeText(w, r)
	case FormatJSON:
		return writeJSON(w, r)
	case FormatCSV:
		return writeCSV(w, r)
	case FormatSARIF:
		return writeSARIF(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// SeverityCounts totals issues across files.
func SeverityCounts(files []types.FileAnalysis) map[types.Severity]int {
	counts := make(map[types.Severity]int, len(types.AllSeverities))
	for i := range files {
		for sev, n := range files[i].CountBySeverity() {
			counts[sev] += n
		}
	}
	return counts
}

// Issues flattens and orders the issues of all files.
func Issues(files []types.FileAnalysis) []types.Issue {
	var out []types.Issue
	for i := range files {
		out = append(out, files[i].Issues...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
	return out
}

func taskList(r *Report) []types.Task {
	if r.Tasks == nil {
		return nil
	}
	return r.Tasks.Tasks
}
