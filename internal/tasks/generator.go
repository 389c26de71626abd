// Package tasks turns scan findings and LLM review records into a
// deduplicated, prioritized work list.
package tasks

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/steveyegge/codeaudit/internal/deduplication"
	"github.com/steveyegge/codeaudit/internal/types"
)

const (
	labelFrozenViolation = "frozen-violation"
	labelAuditFreeze     = "audit-freeze"
	labelFromIssue       = "from-issue"
	labelFromTag         = "from-tag"
	labelFromLLM         = "from-llm"
	labelMalformedTag    = "malformed-tag"
)

// Generator runs the task passes over scan results.
type Generator struct {
	policy Policy
	dedup  *deduplication.Deduplicator
	logger *zap.Logger
}

// NewGenerator validates the policy and builds a generator. A nil dedup uses
// the default configuration; a nil logger is a no-op.
func NewGenerator(policy Policy, dedup *deduplication.Deduplicator, logger *zap.Logger) (*Generator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task policy: %w", err)
	}
	if dedup == nil {
		var err error
		dedup, err = deduplication.New(deduplication.DefaultConfig())
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{policy: policy, dedup: dedup, logger: logger}, nil
}

// Result is the generated task list.
type Result struct {
	Tasks []types.Task `json:"tasks"`
	Stats Stats        `json:"stats"`
	// Duplicates is how many candidate tasks were merged away.
	Duplicates int `json:"duplicates"`
	// ValidationErrors describes malformed inputs that were kept as low tasks.
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// Generate produces tasks from files and, when non-empty, LLM audits. The
// output is sorted and does not depend on the order of either input.
func (g *Generator) Generate(files []types.FileAnalysis, audits []types.FileAudit) *Result {
	ids := newIDAllocator()
	var candidates []types.Task
	var invalid []string

	for i := range files {
		fa := &files[i]
		if fa.IsFrozen() && len(fa.Issues) > 0 {
			candidates = append(candidates, frozenTask(ids, fa))
		}
	}

	for i := range files {
		fa := &files[i]
		for _, issue := range fa.Issues {
			if g.policy.Admit(issue, fa) {
				candidates = append(candidates, issueTask(ids, issue))
			}
		}
	}

	for i := range files {
		for _, tag := range files[i].Tags {
			task, ok, problem := tagTask(ids, tag)
			if problem != "" {
				invalid = append(invalid, problem)
			}
			if ok {
				candidates = append(candidates, task)
			}
		}
	}

	for _, audit := range audits {
		candidates = append(candidates, auditTasks(ids, audit)...)
	}

	deduped := g.dedup.Deduplicate(candidates)
	g.logger.Debug("generated tasks",
		zap.Int("candidates", len(candidates)),
		zap.Int("tasks", len(deduped.Tasks)),
		zap.Int("duplicates", deduped.Stats.DuplicateCount),
		zap.Int("validation_errors", len(invalid)))

	return &Result{
		Tasks:            deduped.Tasks,
		Stats:            ComputeStats(deduped.Tasks),
		Duplicates:       deduped.Stats.DuplicateCount,
		ValidationErrors: invalid,
	}
}

func frozenTask(ids *idAllocator, fa *types.FileAnalysis) types.Task {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is marked @audit-freeze but has %d issue(s):\n", fa.Path, len(fa.Issues))
	for _, issue := range fa.Issues {
		fmt.Fprintf(&b, "- line %d [%s] %s", issue.Line, issue.Severity, issue.Message)
		if issue.RuleID != "" {
			fmt.Fprintf(&b, " (%s)", issue.RuleID)
		}
		b.WriteString("\n")
	}
	b.WriteString("Frozen code must not change without review. Revert the change or lift the freeze explicitly.")

	return types.Task{
		ID:          ids.next(string(types.SourceFrozenViolation), fa.Path, 0, ""),
		Priority:    types.PriorityCritical,
		Title:       fmt.Sprintf("Frozen file has %d issue(s): %s", len(fa.Issues), fa.Path),
		Description: b.String(),
		Source:      types.SourceFrozenViolation,
		Labels:      types.MergeLabels([]string{labelFrozenViolation, string(types.PriorityCritical), labelAuditFreeze}, nil),
		File:        fa.Path,
		Message:     "frozen file violation",
	}
}

func issueTask(ids *idAllocator, issue types.Issue) types.Task {
	desc := fmt.Sprintf("%s:%d: %s", issue.File, issue.Line, issue.Message)
	if issue.Suggestion != "" {
		desc += "\n\nSuggestion: " + issue.Suggestion
	}
	labels := []string{string(issue.Severity), string(issue.Category), labelFromIssue}
	if issue.RuleID != "" {
		labels = append(labels, issue.RuleID)
	}
	return types.Task{
		ID:          ids.next(string(types.SourceIssue), issue.File, issue.Line, issue.RuleID+"|"+issue.Message),
		Priority:    types.PriorityForSeverity(issue.Severity),
		Title:       fmt.Sprintf("[%s] %s (%s:%d)", strings.ToUpper(string(issue.Severity)), issue.Message, issue.File, issue.Line),
		Description: desc,
		Source:      types.SourceIssue,
		Labels:      types.MergeLabels(labels, nil),
		File:        issue.File,
		Line:        issue.Line,
		Message:     issue.Message,
	}
}

// tagTask converts a tag. Freeze tags yield no task; empty messages yield a
// low task and a validation problem.
func tagTask(ids *idAllocator, tag types.AuditTag) (types.Task, bool, string) {
	priority, ok := TagPriority(tag.Type, tag.Message)
	if !ok {
		return types.Task{}, false, ""
	}

	labels := []string{labelFromTag, "tag-" + string(tag.Type)}
	problem := ""
	title := fmt.Sprintf("%s: %s", strings.ToUpper(string(tag.Type)), tag.Message)
	if strings.TrimSpace(tag.Message) == "" {
		priority = types.PriorityLow
		labels = append(labels, labelMalformedTag)
		problem = fmt.Sprintf("%s:%d: %s tag has no message", tag.File, tag.Line, tag.Type)
		title = fmt.Sprintf("%s tag without a message (%s:%d)", strings.ToUpper(string(tag.Type)), tag.File, tag.Line)
	}

	desc := fmt.Sprintf("%s:%d: %s", tag.File, tag.Line, tag.Message)
	if tag.Context != "" {
		desc += "\n\n" + tag.Context
	}
	return types.Task{
		ID:          ids.next(string(types.SourceTag), tag.File, tag.Line, string(tag.Type)+"|"+tag.Message),
		Priority:    priority,
		Title:       title,
		Description: desc,
		Source:      types.SourceTag,
		Labels:      types.MergeLabels(labels, nil),
		File:        tag.File,
		Line:        tag.Line,
		Message:     tag.Message,
	}, true, problem
}

func llmTask(ids *idAllocator, file, kind string, priority types.Priority, title, message string, extra ...string) types.Task {
	return types.Task{
		ID:          ids.next(string(types.SourceLLM), file, 0, kind+"|"+message),
		Priority:    priority,
		Title:       title,
		Description: fmt.Sprintf("%s: %s", file, message),
		Source:      types.SourceLLM,
		Labels:      types.MergeLabels(append([]string{labelFromLLM, kind}, extra...), nil),
		File:        file,
		Message:     message,
	}
}

func auditTasks(ids *idAllocator, audit types.FileAudit) []types.Task {
	if strings.TrimSpace(audit.File) == "" {
		return nil
	}
	var out []types.Task
	for _, issue := range audit.ComplianceIssues {
		if strings.TrimSpace(issue) == "" {
			continue
		}
		out = append(out, llmTask(ids, audit.File, "compliance", types.PriorityMedium,
			fmt.Sprintf("Compliance: %s (%s)", issue, audit.File), issue))
	}
	if audit.Incomplete {
		out = append(out, llmTask(ids, audit.File, "incomplete", types.PriorityHigh,
			fmt.Sprintf("Incomplete implementation: %s", audit.File), "implementation is incomplete"))
	}
	if !audit.Reachable {
		out = append(out, llmTask(ids, audit.File, "unreachable", types.PriorityLow,
			fmt.Sprintf("Possibly unreachable code: %s", audit.File), "file appears unreachable from any entry point"))
	}
	if s := strings.TrimSpace(audit.Improvement); s != "" {
		out = append(out, llmTask(ids, audit.File, "improvement", types.PriorityLow,
			fmt.Sprintf("Improvement: %s", audit.File), s))
	}
	for _, raw := range audit.SuggestedTags {
		tagType, msg, ok := ParseSuggestedTag(raw)
		if !ok {
			continue
		}
		priority, ok := TagPriority(tagType, msg)
		if !ok {
			continue
		}
		out = append(out, llmTask(ids, audit.File, "suggested-tag", priority,
			fmt.Sprintf("%s: %s (%s)", strings.ToUpper(string(tagType)), msg, audit.File), msg, "tag-"+string(tagType)))
	}
	return out
}

var suggestedTagRegex = regexp.MustCompile(`^@?(?:audit-)?([a-zA-Z]+):?\s*(.*)$`)

// ParseSuggestedTag reads an LLM tag suggestion such as
// "@audit-todo: add tests" or "security: validate input".
func ParseSuggestedTag(s string) (types.TagType, string, bool) {
	m := suggestedTagRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	t := types.TagType(strings.ToLower(m[1]))
	if !t.IsValid() {
		return "", "", false
	}
	return t, strings.TrimSpace(m[2]), true
}
