package deduplication

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/types"
)

func task(id string, p types.Priority, file string, line int, msg string, labels ...string) types.Task {
	return types.Task{
		ID:       id,
		Priority: p,
		Title:    msg,
		Source:   types.SourceIssue,
		File:     file,
		Line:     line,
		Message:  msg,
		Labels:   labels,
	}
}

func mustNew(t *testing.T, cfg Config) *Deduplicator {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestDeduplicateMergeRules(t *testing.T) {
	tests := []struct {
		name       string
		input      []types.Task
		wantIDs    []string
		wantLabels map[string][]string
		wantDups   int
	}{
		{
			name: "highest priority wins",
			input: []types.Task{
				task("b", types.PriorityLow, "a.go", 3, "Fix the lock", "todo"),
				task("a", types.PriorityHigh, "a.go", 3, "fix   the lock.", "security"),
			},
			wantIDs:    []string{"a"},
			wantLabels: map[string][]string{"a": {"security", "todo"}},
			wantDups:   1,
		},
		{
			name: "tie breaks on smaller id",
			input: []types.Task{
				task("zz", types.PriorityMedium, "a.go", 1, "same"),
				task("aa", types.PriorityMedium, "a.go", 1, "same"),
			},
			wantIDs:  []string{"aa"},
			wantDups: 1,
		},
		{
			name: "different lines are distinct",
			input: []types.Task{
				task("x", types.PriorityMedium, "a.go", 1, "same"),
				task("y", types.PriorityMedium, "a.go", 2, "same"),
			},
			wantIDs: []string{"x", "y"},
		},
		{
			name: "different files are distinct",
			input: []types.Task{
				task("x", types.PriorityMedium, "b.go", 1, "same"),
				task("y", types.PriorityMedium, "a.go", 1, "same"),
			},
			wantIDs: []string{"y", "x"},
		},
		{
			name: "sorted by priority first",
			input: []types.Task{
				task("l", types.PriorityLow, "a.go", 1, "low"),
				task("c", types.PriorityCritical, "z.go", 9, "crit"),
				task("m", types.PriorityMedium, "a.go", 1, "mid"),
			},
			wantIDs: []string{"c", "m", "l"},
		},
		{
			name: "empty messages never merge",
			input: []types.Task{
				task("x", types.PriorityLow, "a.go", 1, ""),
				task("y", types.PriorityLow, "a.go", 1, ""),
			},
			wantIDs: []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustNew(t, DefaultConfig()).Deduplicate(tt.input)

			var ids []string
			for _, task := range result.Tasks {
				ids = append(ids, task.ID)
				if want, ok := tt.wantLabels[task.ID]; ok {
					assert.Equal(t, want, task.Labels)
				}
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Len(t, result.DuplicatePairs, tt.wantDups)
			assert.Equal(t, tt.wantDups, result.Stats.DuplicateCount)
			assert.Equal(t, len(tt.input), result.Stats.TotalCandidates)
		})
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	input := []types.Task{
		task("3", types.PriorityLow, "b.go", 10, "Refactor handler", "llm"),
		task("1", types.PriorityHigh, "a.go", 2, "leaks connection", "issue"),
		task("2", types.PriorityMedium, "a.go", 2, "Leaks connection", "todo"),
		task("4", types.PriorityCritical, "c.go", 0, "frozen file modified"),
		task("5", types.PriorityLow, "b.go", 10, "refactor handler!", "review"),
	}
	d := mustNew(t, DefaultConfig())

	once := d.Deduplicate(input).Tasks
	twice := d.Deduplicate(once).Tasks

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("dedup is not idempotent (-once +twice):\n%s", diff)
	}
	assert.Len(t, once, 3)
}

func TestDeduplicateOrderIndependent(t *testing.T) {
	a := []types.Task{
		task("1", types.PriorityHigh, "a.go", 2, "x", "one"),
		task("2", types.PriorityHigh, "a.go", 2, "x", "two"),
		task("3", types.PriorityLow, "b.go", 1, "y"),
	}
	b := []types.Task{a[2], a[1], a[0]}
	d := mustNew(t, DefaultConfig())

	if diff := cmp.Diff(d.Deduplicate(a).Tasks, d.Deduplicate(b).Tasks); diff != "" {
		t.Errorf("result depends on input order:\n%s", diff)
	}
}

func TestDeduplicateIgnoreLine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IgnoreLine = true
	result := mustNew(t, cfg).Deduplicate([]types.Task{
		task("x", types.PriorityMedium, "a.go", 1, "same"),
		task("y", types.PriorityMedium, "a.go", 7, "same"),
	})
	assert.Len(t, result.Tasks, 1)
}

func TestDeduplicateMinMessageLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinMessageLength = 5
	result := mustNew(t, cfg).Deduplicate([]types.Task{
		task("x", types.PriorityMedium, "a.go", 1, "fix"),
		task("y", types.PriorityMedium, "a.go", 1, "fix"),
	})
	assert.Len(t, result.Tasks, 2)
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Fix   the Lock.", "fix the lock"},
		{"  trailing space  ", "trailing space"},
		{"why?!", "why"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMessage(tt.in))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MinMessageLength = -1
	assert.Error(t, cfg.Validate())

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CODEAUDIT_DEDUP_IGNORE_LINE", "true")
	t.Setenv("CODEAUDIT_DEDUP_MIN_MESSAGE_LENGTH", "4")

	cfg, err := ConfigFromEnv(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, cfg.IgnoreLine)
	assert.Equal(t, 4, cfg.MinMessageLength)

	t.Setenv("CODEAUDIT_DEDUP_IGNORE_LINE", "maybe")
	_, err = ConfigFromEnv(DefaultConfig())
	assert.Error(t, err)
}
