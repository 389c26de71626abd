package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/tasks"
	"github.com/steveyegge/codeaudit/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleReport(kind Kind) *Report {
	files := []types.FileAnalysis{
		{
			Path: "deploy/run.sh", Category: types.CategoryInfrastructure, Lines: 40,
			Issues: []types.Issue{
				{File: "deploy/run.sh", Line: 12, Severity: types.SeverityHigh, Category: types.IssueReliability,
					Message: "rm -rf on an unchecked variable", RuleID: "unguarded-rm"},
			},
			Tags: []types.AuditTag{{Type: types.TagFreeze, File: "deploy/run.sh", Line: 1, Message: "release script"}},
		},
		{
			Path: "auth/login.go", Category: types.CategorySource, Lines: 120,
			Issues: []types.Issue{
				{File: "auth/login.go", Line: 5, Severity: types.SeverityCritical, Category: types.IssueSecurity,
					Message: "hardcoded credential", RuleID: "hardcoded-secret"},
			},
		},
		{Path: "README.md", Category: types.CategoryDocumentation, Lines: 10},
	}
	list := []types.Task{
		{ID: "t1", Priority: types.PriorityCritical, Title: "Remove hardcoded credential", Source: types.SourceIssue,
			Labels: []string{"security"}, File: "auth/login.go", Line: 5},
		{ID: "t2", Priority: types.PriorityCritical, Title: "Frozen file has issues: deploy/run.sh",
			Source: types.SourceFrozenViolation, Labels: []string{"frozen", "violation"}, File: "deploy/run.sh"},
	}
	return &Report{
		Kind:    kind,
		Target:  "/src/app",
		Files:   files,
		Skipped: scanner.SkipStats{Binary: 2},
		Tags:    []types.AuditTag{{Type: types.TagFreeze, File: "deploy/run.sh", Line: 1, Message: "release script"}},
		Tasks:   &tasks.Result{Tasks: list, Stats: tasks.ComputeStats(list), Duplicates: 1},
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(" " + string(f) + " ")
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, "text, json, csv, sarif")
}

func TestWriteTextStatic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleReport(KindStatic)))
	out := buf.String()

	assert.Contains(t, out, "=== Static analysis: /src/app ===")
	assert.Contains(t, out, "deploy/run.sh (infrastructure, 40 lines)")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "[unguarded-rm]")
	assert.Contains(t, out, "3 analyzed, 2 with issues, 2 skipped")
	assert.Contains(t, out, "Critical: 1")
	assert.NotContains(t, out, "README.md")
}

func TestWriteTextAuditWithLLM(t *testing.T) {
	r := sampleReport(KindAudit)
	r.LLM = &LLMSummary{
		Provider: "xai", Model: "grok-4-fast-reasoning",
		Batches: 3, Parsed: 2, Failed: 1, Cached: 4,
		Budget: cost.BudgetWarning,
		Totals: cost.Totals{Calls: 3, PromptTokens: 12000, CachedTokens: 6000, CompletionTokens: 900, Cost: 0.0123},
		Dumps:  []string{"/tmp/d/questionnaire-failed-response-001.txt"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, r))
	out := buf.String()

	assert.Contains(t, out, "=== Tasks ===")
	assert.Contains(t, out, "Remove hardcoded credential")
	assert.Contains(t, out, "Total: 2 tasks (2 critical), 1 duplicates merged")
	assert.Contains(t, out, "xai/grok-4-fast-reasoning")
	assert.Contains(t, out, "3 (2 parsed, 1 failed, 0 skipped)")
	assert.Contains(t, out, "Cached:   4 files unchanged")
	assert.Contains(t, out, "12.0K prompt (6.0K cached, 50%)")
	assert.Contains(t, out, "$0.0123 [WARNING]")
	assert.Contains(t, out, "questionnaire-failed-response-001.txt")
}

func TestWriteTextTagsEmpty(t *testing.T) {
	r := sampleReport(KindTags)
	r.Tags = nil
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, r))
	assert.Contains(t, buf.String(), "No audit tags found")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleReport(KindStatic)))

	var decoded struct {
		Kind    string `json:"kind"`
		Summary struct {
			Files      int            `json:"files"`
			BySeverity map[string]int `json:"by_severity"`
		} `json:"summary"`
		Files []types.FileAnalysis `json:"files"`
		Tasks json.RawMessage      `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "static", decoded.Kind)
	assert.Equal(t, 3, decoded.Summary.Files)
	assert.Equal(t, 1, decoded.Summary.BySeverity["critical"])
	assert.Len(t, decoded.Files, 2, "files without findings are omitted")
	assert.Nil(t, decoded.Tasks)
}

func TestWriteJSONTasksNeverNull(t *testing.T) {
	r := sampleReport(KindTasks)
	r.Tasks = nil
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, r))
	assert.Contains(t, buf.String(), `"tasks": []`)
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		kind   Kind
		header []string
		rows   int
	}{
		{KindStatic, []string{"file", "line", "severity", "category", "rule_id", "message"}, 2},
		{KindTags, []string{"file", "line", "type", "message"}, 1},
		{KindTasks, []string{"id", "priority", "source", "file", "line", "title", "labels"}, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, FormatCSV, sampleReport(tt.kind)))
			records, err := csv.NewReader(&buf).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, tt.rows+1)
			assert.Equal(t, tt.header, records[0])
		})
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleReport(KindStatic)))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "auth/login.go", records[1][0], "critical issues first")

	buf.Reset()
	require.NoError(t, Write(&buf, FormatCSV, sampleReport(KindTasks)))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "frozen;violation", records[2][6])
	assert.Equal(t, "", records[2][4], "file-level tasks have no line")
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatSARIF, sampleReport(KindTasks)))

	var decoded struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID  string `json:"ruleId"`
				Level   string `json:"level"`
				Message struct {
					Text string `json:"text"`
				} `json:"message"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "2.1.0", decoded.Version)
	require.Len(t, decoded.Runs, 1)
	run := decoded.Runs[0]
	assert.Equal(t, "codeaudit", run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, 2)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "task/issue", run.Results[0].RuleID)
	assert.Equal(t, "error", run.Results[0].Level)
	assert.Equal(t, "Remove hardcoded credential", run.Results[0].Message.Text)
}

func TestWriteSARIFStaticLevels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatSARIF, sampleReport(KindStatic)))
	out := buf.String()
	assert.Contains(t, out, `"ruleId": "hardcoded-secret"`)
	assert.Contains(t, out, `"startLine": 12`)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, Format("xml"), sampleReport(KindStatic)))
	assert.Error(t, Write(&bytes.Buffer{}, FormatText, &Report{Kind: "bogus"}))
}

func TestFormatTokens(t *testing.T) {
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.5K", FormatTokens(1500))
	assert.Equal(t, "2.50M", FormatTokens(2_500_000))
}
