// Package prompt assembles LLM prompts with a static part that is identical
// across every call in a run and a dynamic part that carries the batch.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/types"
)

// Prompt is one assembled request.
type Prompt struct {
	// Static is byte-identical for every call built from the same scan, so
	// providers can cache it.
	Static string
	// Dynamic holds the source excerpts and per-call instructions.
	Dynamic string
	// Files lists the paths covered by Dynamic, in prompt order.
	Files []string
}

// Options bounds the prompt size.
type Options struct {
	// MaxSummaryBytes caps the static-analysis summary in Static.
	MaxSummaryBytes int
	// MaxExcerptBytes caps each file's excerpt in Dynamic.
	MaxExcerptBytes int
	// MaxIssuesPerFile caps how many findings are listed per file.
	MaxIssuesPerFile int
	// Guidance is appended to the system instructions, e.g. project rules.
	Guidance string
}

// DefaultOptions returns the default prompt bounds.
func DefaultOptions() Options {
	return Options{
		MaxSummaryBytes:  16 * 1024,
		MaxExcerptBytes:  24 * 1024,
		MaxIssuesPerFile: 10,
	}
}

// Source is a file to include in a batch.
type Source struct {
	Path    string
	Content string
}

// Builder produces prompts for one scan. It is safe for concurrent use.
type Builder struct {
	opts   Options
	static string
	byPath map[string]*types.FileAnalysis
}

// NewBuilder renders the static part once from the scan results.
func NewBuilder(files []types.FileAnalysis, opts Options) *Builder {
	def := DefaultOptions()
	if opts.MaxSummaryBytes <= 0 {
		opts.MaxSummaryBytes = def.MaxSummaryBytes
	}
	if opts.MaxExcerptBytes <= 0 {
		opts.MaxExcerptBytes = def.MaxExcerptBytes
	}
	if opts.MaxIssuesPerFile <= 0 {
		opts.MaxIssuesPerFile = def.MaxIssuesPerFile
	}

	byPath := make(map[string]*types.FileAnalysis, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}
	b := &Builder{opts: opts, byPath: byPath}
	b.static = systemInstructions(opts.Guidance) + "\n\n" + summarize(files, opts)
	return b
}

// Static returns the cached static part.
func (b *Builder) Static() string {
	return b.static
}

// Build assembles the prompt for one batch. Excerpts are secret-redacted and
// truncated.
func (b *Builder) Build(batch []Source) Prompt {
	var sb strings.Builder
	files := make([]string, 0, len(batch))

	for _, src := range batch {
		files = append(files, src.Path)
		fmt.Fprintf(&sb, "=== FILE: %s", src.Path)
		if fa, ok := b.byPath[src.Path]; ok {
			fmt.Fprintf(&sb, " (%s)", fa.Category)
		}
		sb.WriteString(" ===\n")

		if fa, ok := b.byPath[src.Path]; ok && len(fa.Issues) > 0 {
			sb.WriteString("Known findings:\n")
			writeIssues(&sb, fa.Issues, b.opts.MaxIssuesPerFile)
		}

		sb.WriteString(numbered(truncate(scanner.RedactSecrets(src.Content), b.opts.MaxExcerptBytes)))
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Answer the questionnaire for each of the %d file(s) above. "+
		"Return exactly one entry per file in \"file_audits\", using the paths exactly as given.", len(batch))

	return Prompt{Static: b.static, Dynamic: sb.String(), Files: files}
}

func systemInstructions(guidance string) string {
	var sb strings.Builder
	sb.WriteString(`You are an expert code auditor. You review source files for reachability, rule compliance, completeness and safety.

## QUESTIONNAIRE

For EVERY file you are given, answer:

1. REACHABILITY: Is the file imported or used by anything else? If not, suggest "@audit-tag: legacy".
2. COMPLIANCE: Does it break project rules? Look for hardcoded secrets, unchecked errors, blocking calls on hot paths, missing input validation.
3. COMPLETENESS: Are there TODOs, stubs or partial implementations?
4. TAGS: Suggest audit tags (e.g. "@audit-todo: ...", "@audit-security: ...", "@audit-review: ...") for anything a human should look at.
5. IMPROVEMENT: Suggest ONE high-impact refactor.
`)
	if g := strings.TrimSpace(guidance); g != "" {
		sb.WriteString("\n## PROJECT RULES\n\n")
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	sb.WriteString(`
## OUTPUT FORMAT

RESPOND ONLY WITH VALID JSON matching this schema, with no text before or after it:
{
  "file_audits": [
    {
      "file": "path/to/file",
      "reachable": true,
      "compliance_issues": ["description of each issue"],
      "incomplete": false,
      "suggested_tags": ["@audit-todo: description"],
      "improvement": "one improvement suggestion"
    }
  ]
}`)
	return sb.String()
}

// summarize renders a deterministic overview of the scan. Files are ordered
// by worst severity, then issue count, then path. Output stops at the byte
// limit on a line boundary.
func summarize(files []types.FileAnalysis, opts Options) string {
	bySev := map[types.Severity]int{}
	byCat := map[types.FileCategory]int{}
	var tagged []*types.FileAnalysis
	for i := range files {
		fa := &files[i]
		byCat[fa.Category]++
		for _, issue := range fa.Issues {
			bySev[issue.Severity]++
		}
		if len(fa.Issues) > 0 || fa.IsFrozen() {
			tagged = append(tagged, fa)
		}
	}
	sort.Slice(tagged, func(i, j int) bool {
		a, b := tagged[i], tagged[j]
		ra, rb := rankOf(a), rankOf(b)
		if ra != rb {
			return ra < rb
		}
		if len(a.Issues) != len(b.Issues) {
			return len(a.Issues) > len(b.Issues)
		}
		return a.Path < b.Path
	})

	var sb strings.Builder
	sb.WriteString("## STATIC ANALYSIS SUMMARY\n\n")
	fmt.Fprintf(&sb, "Files: %d", len(files))
	for _, c := range []types.FileCategory{types.CategorySource, types.CategoryTest, types.CategoryInfrastructure, types.CategoryDocumentation} {
		fmt.Fprintf(&sb, ", %s %d", c, byCat[c])
	}
	sb.WriteString("\nIssues:")
	for _, s := range types.AllSeverities {
		fmt.Fprintf(&sb, " %s %d", s, bySev[s])
	}
	sb.WriteString("\n\n")

	header := sb.String()
	var body strings.Builder
	omitted := 0
	for i, fa := range tagged {
		var entry strings.Builder
		fmt.Fprintf(&entry, "%s (%s, %d issue(s)", fa.Path, fa.Category, len(fa.Issues))
		if fa.IsFrozen() {
			entry.WriteString(", FROZEN")
		}
		entry.WriteString(")\n")
		writeIssues(&entry, fa.Issues, opts.MaxIssuesPerFile)

		if len(header)+body.Len()+entry.Len() > opts.MaxSummaryBytes {
			omitted = len(tagged) - i
			break
		}
		body.WriteString(entry.String())
	}
	if omitted > 0 {
		fmt.Fprintf(&body, "... %d more file(s) with findings omitted\n", omitted)
	}
	return header + body.String()
}

func rankOf(fa *types.FileAnalysis) int {
	if s := fa.MaxSeverity(); s != "" {
		return s.Rank()
	}
	return len(types.AllSeverities)
}

func writeIssues(sb *strings.Builder, issues []types.Issue, limit int) {
	for i, issue := range issues {
		if i == limit {
			fmt.Fprintf(sb, "  ... %d more\n", len(issues)-limit)
			return
		}
		fmt.Fprintf(sb, "  - line %d [%s] %s\n", issue.Line, issue.Severity, issue.Message)
	}
}

// truncate cuts s to at most limit bytes, on a line boundary when possible
// and never inside a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "\n... [truncated]"
}

func numbered(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%4d | %s\n", i+1, line)
	}
	return sb.String()
}
