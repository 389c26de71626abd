package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 0, SeverityCritical.Rank())
	assert.Equal(t, 4, SeverityInfo.Rank())
	assert.Equal(t, -1, Severity("bogus").Rank())
	assert.False(t, Severity("bogus").IsValid())

	sev, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestPriorityHigher(t *testing.T) {
	tests := []struct {
		a, b Priority
		want bool
	}{
		{PriorityCritical, PriorityHigh, true},
		{PriorityLow, PriorityMedium, false},
		{PriorityMedium, PriorityMedium, false},
		{PriorityLow, Priority(""), true},
		{Priority(""), PriorityLow, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+">"+string(tt.b), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Higher(tt.b))
		})
	}
}

func TestFileAnalysisHelpers(t *testing.T) {
	fa := FileAnalysis{
		Path: "a.go",
		Issues: []Issue{
			{Severity: SeverityLow},
			{Severity: SeverityHigh},
			{Severity: SeverityLow},
		},
		Tags: []AuditTag{{Type: TagFreeze}},
	}

	assert.True(t, fa.IsFrozen())
	assert.False(t, fa.HasTag(TagTodo))
	assert.Equal(t, SeverityHigh, fa.MaxSeverity())
	assert.Equal(t, 2, fa.CountBySeverity()[SeverityLow])
	assert.Equal(t, Severity(""), (&FileAnalysis{}).MaxSeverity())
}

func TestTaskValidate(t *testing.T) {
	valid := Task{ID: "x", Title: "t", Priority: PriorityLow, Source: SourceTag}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"missing id", func(t *Task) { t.ID = "" }},
		{"blank title", func(t *Task) { t.Title = "  " }},
		{"bad priority", func(t *Task) { t.Priority = "p0" }},
		{"bad source", func(t *Task) { t.Source = "manual" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			assert.Error(t, task.Validate())
		})
	}
}

func TestMergeLabels(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeLabels([]string{"c", "a"}, []string{"b", "a", ""}))
	assert.Equal(t, []string{}, MergeLabels(nil, nil))
}

func TestSortTasks(t *testing.T) {
	tasks := []Task{
		{ID: "3", Priority: PriorityLow, File: "a.go"},
		{ID: "2", Priority: PriorityCritical, File: "b.go", Line: 2},
		{ID: "1", Priority: PriorityCritical, File: "b.go", Line: 2},
		{ID: "0", Priority: PriorityCritical, File: "a.go", Line: 9},
	}
	SortTasks(tasks)

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"0", "1", "2", "3"}, ids)
}

func TestFileAuditUnmarshal(t *testing.T) {
	data := `{
		"file": "src/engine.rs",
		"compliance_issues": [
			"plain string issue",
			{"type": "SAFETY", "description": "unwrap on hot path", "paper_reference": "n/a"},
			{"description": "untyped object"}
		],
		"incomplete": true
	}`

	var audit FileAudit
	require.NoError(t, json.Unmarshal([]byte(data), &audit))

	assert.Equal(t, "src/engine.rs", audit.File)
	assert.True(t, audit.Reachable, "missing reachable defaults to true")
	assert.True(t, audit.Incomplete)
	assert.Equal(t, ComplianceList{"plain string issue", "[safety] unwrap on hot path", "untyped object"}, audit.ComplianceIssues)

	require.NoError(t, json.Unmarshal([]byte(`{"file":"a","reachable":false}`), &audit))
	assert.False(t, audit.Reachable)

	assert.Error(t, json.Unmarshal([]byte(`{"file":"a","compliance_issues":[42]}`), &audit))
}

func TestRunValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	valid := func() Run {
		return Run{ID: "r1", Target: "/src", Mode: ModeLLM, Status: RunCompleted, StartedAt: start}
	}

	tests := []struct {
		name    string
		mutate  func(*Run)
		wantErr bool
	}{
		{"valid", func(*Run) {}, false},
		{"missing id", func(r *Run) { r.ID = "" }, true},
		{"missing target", func(r *Run) { r.Target = "" }, true},
		{"bad mode", func(r *Run) { r.Mode = "turbo" }, true},
		{"bad status", func(r *Run) { r.Status = "meh" }, true},
		{"no start", func(r *Run) { r.StartedAt = time.Time{} }, true},
		{"finish before start", func(r *Run) { r.FinishedAt = start.Add(-time.Second) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	r := valid()
	assert.Zero(t, r.Duration())
	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}
