package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/types"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	sectionColor = color.New(color.FgYellow)
	dimColor     = color.New(color.FgHiBlack)
)

func severityColor(s types.Severity) *color.Color {
	switch s {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case types.SeverityHigh:
		return color.New(color.FgRed)
	case types.SeverityMedium:
		return color.New(color.FgYellow)
	case types.SeverityLow:
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgHiBlack)
	}
}

func priorityColor(p types.Priority) *color.Color {
	switch p {
	case types.PriorityCritical:
		return color.New(color.FgRed, color.Bold)
	case types.PriorityHigh:
		return color.New(color.FgRed)
	case types.PriorityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgBlue)
	}
}

// textWriter accumulates the first write error so the render functions can
// stay linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func writeText(w io.Writer, r *Report) error {
	t := &textWriter{w: w}
	switch r.Kind {
	case KindStatic:
		textStatic(t, r)
	case KindTags:
		textTags(t, r)
	case KindTasks:
		textTasks(t, r)
	case KindAudit:
		textStatic(t, r)
		textTasks(t, r)
		if r.LLM != nil {
			textLLM(t, r.LLM)
		}
	default:
		return fmt.Errorf("unknown report kind: %s", r.Kind)
	}
	return t.err
}

func textStatic(t *textWriter, r *Report) {
	t.printf("\n%s\n\n", headerColor.Sprintf("=== Static analysis: %s ===", r.Target))

	withIssues := 0
	for i := range r.Files {
		fa := &r.Files[i]
		if len(fa.Issues) == 0 {
			continue
		}
		withIssues++
		t.printf("%s %s\n", fa.Path, dimColor.Sprintf("(%s, %d lines)", fa.Category, fa.Lines))
		for _, issue := range fa.Issues {
			sev := severityColor(issue.Severity).Sprintf("%-8s", strings.ToUpper(string(issue.Severity)))
			t.printf("  %s %4d  %s", sev, issue.Line, issue.Message)
			if issue.RuleID != "" {
				t.printf(" %s", dimColor.Sprintf("[%s]", issue.RuleID))
			}
			t.printf("\n")
		}
	}
	if withIssues == 0 {
		t.printf("%s\n", color.GreenString("No issues found"))
	}

	counts := SeverityCounts(r.Files)
	t.printf("\n%s\n", sectionColor.Sprint("Summary:"))
	t.printf("  Files:    %d analyzed, %d with issues", len(r.Files), withIssues)
	if n := r.Skipped.Total(); n > 0 {
		t.printf(", %d skipped (%d binary, %d too large, %d unreadable)",
			n, r.Skipped.Binary, r.Skipped.TooLarge, r.Skipped.Unreadable)
	}
	t.printf("\n")
	for _, sev := range types.AllSeverities {
		t.printf("  %-9s %d\n", capitalize(string(sev))+":", counts[sev])
	}
}

func textTags(t *textWriter, r *Report) {
	t.printf("\n%s\n\n", headerColor.Sprintf("=== Audit tags: %s ===", r.Target))
	if len(r.Tags) == 0 {
		t.printf("%s\n", color.GreenString("No audit tags found"))
		return
	}
	byType := make(map[types.TagType]int)
	for _, tag := range r.Tags {
		byType[tag.Type]++
		label := strings.ToUpper(string(tag.Type))
		if tag.Type == types.TagFreeze || tag.Type == types.TagSecurity {
			label = color.New(color.FgRed, color.Bold).Sprint(label)
		} else {
			label = color.New(color.FgYellow).Sprint(label)
		}
		msg := tag.Message
		if msg == "" {
			msg = dimColor.Sprint("(no message)")
		}
		t.printf("%s:%d  %s  %s\n", tag.File, tag.Line, label, msg)
	}
	t.printf("\n%s %d tags", sectionColor.Sprint("Total:"), len(r.Tags))
	var parts []string
	for _, tt := range []types.TagType{types.TagFreeze, types.TagSecurity, types.TagFixme, types.TagTodo,
		types.TagHack, types.TagReview, types.TagNote, types.TagGeneric} {
		if byType[tt] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", byType[tt], tt))
		}
	}
	if len(parts) > 0 {
		t.printf(" (%s)", strings.Join(parts, ", "))
	}
	t.printf("\n")
}

func textTasks(t *textWriter, r *Report) {
	t.printf("\n%s\n\n", headerColor.Sprint("=== Tasks ==="))
	list := taskList(r)
	if len(list) == 0 {
		t.printf("%s\n", color.GreenString("No tasks generated"))
		return
	}
	for _, task := range list {
		pri := priorityColor(task.Priority).Sprintf("%-8s", strings.ToUpper(string(task.Priority)))
		loc := task.File
		if task.Line > 0 {
			loc = fmt.Sprintf("%s:%d", task.File, task.Line)
		}
		t.printf("%s %s  %s\n", pri, task.Title, dimColor.Sprint(loc))
		if len(task.Labels) > 0 {
			t.printf("         %s\n", dimColor.Sprintf("labels: %s", strings.Join(task.Labels, ", ")))
		}
	}

	stats := r.Tasks.Stats
	t.printf("\n%s %d tasks", sectionColor.Sprint("Total:"), stats.Total)
	var parts []string
	for _, p := range types.AllPriorities {
		if stats.ByPriority[p] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", stats.ByPriority[p], p))
		}
	}
	t.printf(" (%s)", strings.Join(parts, ", "))
	if r.Tasks.Duplicates > 0 {
		t.printf(", %d duplicates merged", r.Tasks.Duplicates)
	}
	t.printf("\n")
	for _, v := range r.Tasks.ValidationErrors {
		t.printf("%s %s\n", color.YellowString("warning:"), v)
	}
}

func textLLM(t *textWriter, l *LLMSummary) {
	t.printf("\n%s\n\n", headerColor.Sprint("=== LLM review ==="))
	model := l.Provider
	if l.Model != "" {
		model += "/" + l.Model
	}
	t.printf("  Model:    %s\n", model)
	t.printf("  Batches:  %d (%d parsed, %d failed, %d skipped)\n", l.Batches, l.Parsed, l.Failed, l.Skipped)
	if l.Cached > 0 {
		t.printf("  Cached:   %d files unchanged since their last review\n", l.Cached)
	}
	if l.BudgetHalted {
		t.printf("  %s\n", color.New(color.FgRed, color.Bold).Sprint("Run budget exceeded, remaining batches skipped"))
	}
	if l.Canceled {
		t.printf("  %s\n", color.YellowString("Run canceled, results are partial"))
	}

	status := color.New(color.FgGreen)
	switch l.Budget {
	case cost.BudgetWarning:
		status = color.New(color.FgYellow)
	case cost.BudgetExceeded:
		status = color.New(color.FgRed, color.Bold)
	}
	t.printf("  Tokens:   %s prompt (%s cached, %.0f%%), %s completion\n",
		FormatTokens(l.Totals.PromptTokens), FormatTokens(l.Totals.CachedTokens),
		l.Totals.CacheHitRate()*100, FormatTokens(l.Totals.CompletionTokens))
	t.printf("  Cost:     $%.4f %s\n", l.Totals.Cost, status.Sprintf("[%s]", l.Budget))
	for _, d := range l.Dumps {
		t.printf("  %s %s\n", color.YellowString("raw response saved:"), d)
	}
}

// FormatTokens formats a token count for display.
func FormatTokens(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	} else if tokens < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(tokens)/1_000_000)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
