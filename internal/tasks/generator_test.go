package tasks

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/types"
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultPolicy(), nil, nil)
	require.NoError(t, err)
	return g
}

func issue(file string, line int, sev types.Severity, msg string) types.Issue {
	return types.Issue{File: file, Line: line, Severity: sev, Category: types.IssueQuality, Message: msg, RuleID: "rule-" + string(sev)}
}

func bySource(tasks []types.Task, src types.TaskSource) []types.Task {
	var out []types.Task
	for _, t := range tasks {
		if t.Source == src {
			out = append(out, t)
		}
	}
	return out
}

// A TODO in one file plus a frozen file with an issue must yield at least the
// TODO task and the frozen-violation task.
func TestGenerateTodoAndFrozenScenario(t *testing.T) {
	files := []types.FileAnalysis{
		{
			Path:     "a.go",
			Category: types.CategorySource,
			Tags:     []types.AuditTag{{Type: types.TagTodo, File: "a.go", Line: 1, Message: "fix this"}},
		},
		{
			Path:     "b.go",
			Category: types.CategorySource,
			Tags:     []types.AuditTag{{Type: types.TagFreeze, File: "b.go", Line: 1}},
			Issues:   []types.Issue{issue("b.go", 4, types.SeverityMedium, "quality nit")},
		},
	}

	result := newGenerator(t).Generate(files, nil)
	require.GreaterOrEqual(t, len(result.Tasks), 2)

	frozen := bySource(result.Tasks, types.SourceFrozenViolation)
	require.Len(t, frozen, 1)
	assert.Equal(t, types.PriorityCritical, frozen[0].Priority)
	assert.Equal(t, "b.go", frozen[0].File)
	assert.Equal(t, []string{"audit-freeze", "critical", "frozen-violation"}, frozen[0].Labels)
	assert.Contains(t, frozen[0].Description, "quality nit")

	todo := bySource(result.Tasks, types.SourceTag)
	require.Len(t, todo, 1)
	assert.Equal(t, types.PriorityMedium, todo[0].Priority)
	assert.Equal(t, "a.go", todo[0].File)

	assert.Equal(t, types.SourceFrozenViolation, result.Tasks[0].Source, "critical task sorts first")
}

func TestFrozenViolationCoverage(t *testing.T) {
	files := []types.FileAnalysis{
		{
			Path:   "frozen/one.go",
			Tags:   []types.AuditTag{{Type: types.TagFreeze, File: "frozen/one.go", Line: 1}},
			Issues: []types.Issue{issue("frozen/one.go", 2, types.SeverityLow, "a"), issue("frozen/one.go", 3, types.SeverityInfo, "b")},
		},
		{
			Path: "frozen/clean.go",
			Tags: []types.AuditTag{{Type: types.TagFreeze, File: "frozen/clean.go", Line: 1}},
		},
		{
			Path:   "thawed.go",
			Issues: []types.Issue{issue("thawed.go", 2, types.SeverityLow, "a")},
		},
	}

	result := newGenerator(t).Generate(files, nil)
	frozen := bySource(result.Tasks, types.SourceFrozenViolation)

	require.Len(t, frozen, 1, "exactly one task per frozen file with issues")
	assert.Equal(t, "frozen/one.go", frozen[0].File)
	assert.Contains(t, frozen[0].Description, "line 2")
	assert.Contains(t, frozen[0].Description, "line 3")
	for _, task := range result.Tasks {
		assert.False(t, task.HasLabel("tag-freeze"), "freeze tags never yield standalone tasks")
	}
	assert.Len(t, result.Tasks, 1)
}

func TestCriticalAndHighCoverage(t *testing.T) {
	files := []types.FileAnalysis{
		{
			Path: "pkg/util.go",
			Issues: []types.Issue{
				issue("pkg/util.go", 1, types.SeverityCritical, "secret"),
				issue("pkg/util.go", 9, types.SeverityHigh, "insecure tls"),
				issue("pkg/util.go", 12, types.SeverityMedium, "not on a critical path"),
				issue("pkg/util.go", 15, types.SeverityLow, "not a hotspot"),
			},
		},
	}

	result := newGenerator(t).Generate(files, nil)
	issues := bySource(result.Tasks, types.SourceIssue)

	require.Len(t, issues, 2)
	assert.Equal(t, types.PriorityCritical, issues[0].Priority)
	assert.Equal(t, 1, issues[0].Line)
	assert.Equal(t, types.PriorityHigh, issues[1].Priority)
	assert.True(t, issues[0].HasLabel("from-issue"))
	assert.True(t, issues[0].HasLabel("critical"))
	assert.True(t, issues[0].HasLabel("quality"))
}

func TestSeverityAdmission(t *testing.T) {
	hotspot := make([]types.Issue, 0, 6)
	for i := 1; i <= 6; i++ {
		hotspot = append(hotspot, issue("pkg/busy.go", i, types.SeverityLow, "style"))
	}
	fiveIssues := hotspot[:5]

	tests := []struct {
		name string
		file types.FileAnalysis
		want int
	}{
		{
			name: "medium on critical path",
			file: types.FileAnalysis{Path: "internal/auth/token.go", Issues: []types.Issue{issue("internal/auth/token.go", 3, types.SeverityMedium, "m")}},
			want: 1,
		},
		{
			name: "medium in entry point",
			file: types.FileAnalysis{Path: "cmd/app/main.go", Issues: []types.Issue{issue("cmd/app/main.go", 3, types.SeverityMedium, "m")}},
			want: 1,
		},
		{
			name: "medium elsewhere",
			file: types.FileAnalysis{Path: "pkg/format.go", Issues: []types.Issue{issue("pkg/format.go", 3, types.SeverityMedium, "m")}},
			want: 0,
		},
		{
			name: "low in hotspot",
			file: types.FileAnalysis{Path: "pkg/busy.go", Issues: hotspot},
			want: 6,
		},
		{
			name: "low at threshold",
			file: types.FileAnalysis{Path: "pkg/busy.go", Issues: fiveIssues},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newGenerator(t).Generate([]types.FileAnalysis{tt.file}, nil)
			assert.Len(t, bySource(result.Tasks, types.SourceIssue), tt.want)
		})
	}
}

func TestTagPriorities(t *testing.T) {
	tests := []struct {
		tagType types.TagType
		message string
		want    types.Priority
		ok      bool
	}{
		{types.TagSecurity, "check authz", types.PriorityCritical, true},
		{types.TagFixme, "broken", types.PriorityHigh, true},
		{types.TagReview, "look", types.PriorityMedium, true},
		{types.TagTodo, "later", types.PriorityMedium, true},
		{types.TagHack, "workaround", types.PriorityMedium, true},
		{types.TagNote, "fyi", types.PriorityLow, true},
		{types.TagGeneric, "cleanup", types.PriorityLow, true},
		{types.TagGeneric, "Incomplete error handling", types.PriorityHigh, true},
		{types.TagFreeze, "", "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.tagType)+"/"+tt.message, func(t *testing.T) {
			got, ok := TagPriority(tt.tagType, tt.message)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEmptyTagMessageIsLowAndRecorded(t *testing.T) {
	files := []types.FileAnalysis{{
		Path: "a.go",
		Tags: []types.AuditTag{{Type: types.TagSecurity, File: "a.go", Line: 7}},
	}}

	result := newGenerator(t).Generate(files, nil)

	require.Len(t, result.Tasks, 1)
	assert.Equal(t, types.PriorityLow, result.Tasks[0].Priority)
	assert.True(t, result.Tasks[0].HasLabel("malformed-tag"))
	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "a.go:7")
}

func TestLLMPass(t *testing.T) {
	audits := []types.FileAudit{{
		File:             "pkg/engine.go",
		Reachable:        false,
		ComplianceIssues: []string{"missing context propagation", ""},
		Incomplete:       true,
		SuggestedTags:    []string{"@audit-security: validate input", "@audit-freeze", "nonsense!"},
		Improvement:      "extract the retry loop",
	}}

	result := newGenerator(t).Generate(nil, audits)
	llm := bySource(result.Tasks, types.SourceLLM)

	got := map[types.Priority]int{}
	for _, task := range llm {
		got[task.Priority]++
		assert.True(t, task.HasLabel("from-llm"))
		assert.Equal(t, "pkg/engine.go", task.File)
	}
	assert.Equal(t, map[types.Priority]int{
		types.PriorityCritical: 1, // suggested security tag
		types.PriorityHigh:     1, // incomplete
		types.PriorityMedium:   1, // compliance
		types.PriorityLow:      2, // unreachable, improvement
	}, got)
}

func TestGenerateDeduplicatesAcrossPasses(t *testing.T) {
	files := []types.FileAnalysis{{
		Path:   "a.go",
		Issues: []types.Issue{issue("a.go", 5, types.SeverityHigh, "Leaks file handle")},
		Tags:   []types.AuditTag{{Type: types.TagTodo, File: "a.go", Line: 5, Message: "leaks file handle"}},
	}}

	result := newGenerator(t).Generate(files, nil)

	require.Len(t, result.Tasks, 1)
	assert.Equal(t, types.PriorityHigh, result.Tasks[0].Priority)
	assert.True(t, result.Tasks[0].HasLabel("from-issue"))
	assert.True(t, result.Tasks[0].HasLabel("from-tag"))
	assert.Equal(t, 1, result.Duplicates)
}

func TestGenerateDeterministic(t *testing.T) {
	files := []types.FileAnalysis{
		{Path: "a.go", Issues: []types.Issue{issue("a.go", 1, types.SeverityCritical, "x")}},
		{Path: "b.go", Tags: []types.AuditTag{{Type: types.TagFixme, File: "b.go", Line: 2, Message: "y"}}},
	}
	reversed := []types.FileAnalysis{files[1], files[0]}
	g := newGenerator(t)

	first := g.Generate(files, nil).Tasks
	second := g.Generate(reversed, nil).Tasks
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("generation depends on input order (-first +second):\n%s", diff)
	}

	seen := map[string]bool{}
	for _, task := range first {
		require.NoError(t, task.Validate())
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Admissions[types.SeverityHigh] = AdmitOnCriticalPath
	assert.Error(t, p.Validate())

	_, err := NewGenerator(p, nil, nil)
	assert.Error(t, err)
}

func TestParseAdmission(t *testing.T) {
	a, err := ParseAdmission("Critical-Path")
	require.NoError(t, err)
	assert.Equal(t, AdmitOnCriticalPath, a)

	_, err = ParseAdmission("sometimes")
	assert.Error(t, err)
}

func TestParseSuggestedTag(t *testing.T) {
	tests := []struct {
		in      string
		tagType types.TagType
		msg     string
		ok      bool
	}{
		{"@audit-todo: add tests", types.TagTodo, "add tests", true},
		{"security: validate input", types.TagSecurity, "validate input", true},
		{"@audit-freeze", types.TagFreeze, "", true},
		{"FIXME race on close", types.TagFixme, "race on close", true},
		{"@audit-bogus: x", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tagType, msg, ok := ParseSuggestedTag(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tagType, tagType)
			assert.Equal(t, tt.msg, msg)
		})
	}
}
