package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/ai"
	"github.com/steveyegge/codeaudit/internal/pipeline"
	"github.com/steveyegge/codeaudit/internal/storage"
	"github.com/steveyegge/codeaudit/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// runCLI executes the root command in-process with fresh flag values.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	formatFlag, configPath, verbose = "text", "", false
	auditLLM, auditProvider, auditModel = false, "", ""
	costDays, costRuns = 30, 10

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Dockerfile":    "FROM golang:latest\nRUN go build ./...\n",
		"main.go":       "package main\n\n// TODO: handle shutdown signals\nfunc main() {}\n",
		"pkg/frozen.go": "// @audit-freeze\npackage pkg\n\nfunc mustLoad() { panic(\"boom\") }\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestStaticCommand(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "static", root, "--format", "json")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "static", decoded["kind"])
	assert.Contains(t, out, "image-latest")
}

func TestTagsCommand(t *testing.T) {
	out, err := runCLI(t, "tags", writeProject(t), "-f", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "handle shutdown signals")
}

func TestTasksCommand(t *testing.T) {
	out, err := runCLI(t, "tasks", writeProject(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "Frozen file has 1 issue(s): pkg/frozen.go")
}

func TestAuditCommandRecordsHistory(t *testing.T) {
	root := writeProject(t)

	out, err := runCLI(t, "audit", root, "--format", "sarif")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "2.1.0"`)

	out, err = runCLI(t, "cost", root, "--format", "json")
	require.NoError(t, err)
	var decoded costJSON
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Runs, 1)
	assert.Equal(t, types.ModeStatic, decoded.Runs[0].Mode)
	assert.Empty(t, decoded.Spend)
}

func TestAuditCommandMissingCredentials(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	t.Setenv("GROK_API_KEY", "")
	root := writeProject(t)

	_, err := runCLI(t, "audit", root, "--llm", "--provider", "xai")
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)

	// Nothing was recorded because the scan never started.
	_, statErr := os.Stat(filepath.Join(root, ".codeaudit"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommandErrors(t *testing.T) {
	root := writeProject(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing target", args: []string{"static", filepath.Join(root, "nope")}, want: pipeline.ErrInvalidTarget},
		{name: "bad format", args: []string{"static", root, "--format", "xml"}},
		{name: "missing argument", args: []string{"tasks"}},
		{name: "missing config file", args: []string{"tasks", root, "--config", filepath.Join(root, "missing.yaml")}},
		{name: "cost csv", args: []string{"cost", root, "--format", "csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCostCommandText(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	h, err := storage.Open(ctx, storage.Config{Root: root})
	require.NoError(t, err)

	started := time.Now().Add(-time.Hour).UTC()
	run := &types.Run{
		ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Target: root,
		Mode: types.ModeLLM, Status: types.RunPartial, Branch: "main",
		TaskCount: 7, LLMCalls: 1, Cost: 0.25,
		StartedAt: started, FinishedAt: started.Add(time.Minute),
	}
	costs := []types.CostRecord{{
		Provider: "xai", Model: "grok-4-fast-reasoning", Operation: "audit",
		PromptTokens: 12_000, CachedTokens: 2_000, CompletionTokens: 800,
		EstimatedCost: 0.25, RecordedAt: started,
	}}
	require.NoError(t, h.RecordRun(ctx, run, nil, costs))
	require.NoError(t, h.Close())

	out, err := runCLI(t, "cost", root)
	require.NoError(t, err)
	assert.Contains(t, out, "=== LLM Spend ===")
	assert.Contains(t, out, "xai/grok-4-fast-reasoning: 1 calls in 1 runs, 12.0K in / 800 out (2.0K cached), $0.2500")
	assert.Contains(t, out, "0f8fad5b")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "main")
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		filled  int
	}{
		{percent: -5, filled: 0},
		{percent: 50, filled: 5},
		{percent: 250, filled: 10},
	}
	for _, tt := range tests {
		bar := renderProgressBar(tt.percent, 10)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"))
		assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"))
	}
}
