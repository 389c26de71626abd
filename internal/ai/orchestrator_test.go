package ai

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/prompt"
)

var fileHeaderRegex = regexp.MustCompile(`=== FILE: (\S+)`)

// fakeProvider answers with one audit per file named in the prompt.
type fakeProvider struct {
	mu       sync.Mutex
	requests []Request
	delay    func(files []string) time.Duration
	fail     func(files []string) error
	onCall   func()
	usage    Usage
}

func (f *fakeProvider) Name() string { return ProviderXAI }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	var files []string
	for _, m := range fileHeaderRegex.FindAllStringSubmatch(req.User, -1) {
		files = append(files, m[1])
	}
	if f.onCall != nil {
		f.onCall()
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(files)):
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(files); err != nil {
			return Completion{}, err
		}
	}
	text := `{"file_audits": [`
	for i, file := range files {
		if i > 0 {
			text += ","
		}
		text += fmt.Sprintf(`{"file": %q, "improvement": "tidy %s"}`, file, file)
	}
	text += "]}"
	return Completion{Text: text, Model: "grok-4-fast-reasoning", Usage: f.usage}, nil
}

func sources(n int) []prompt.Source {
	out := make([]prompt.Source, n)
	for i := range out {
		out[i] = prompt.Source{Path: fmt.Sprintf("pkg/f%02d.go", i), Content: "package pkg\n"}
	}
	return out
}

func newFakeClient(t *testing.T, p Provider) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	c, err := NewClient(p, cfg, nil, nil, nil)
	require.NoError(t, err)
	return c
}

func TestOrchestratorFoldsInBatchOrder(t *testing.T) {
	p := &fakeProvider{
		// Earlier batches finish last
		delay: func(files []string) time.Duration {
			if files[0] == "pkg/f00.go" {
				return 30 * time.Millisecond
			}
			return time.Millisecond
		},
		usage: Usage{PromptTokens: 100, CompletionTokens: 10},
	}
	o := NewOrchestrator(newFakeClient(t, p), prompt.NewBuilder(nil, prompt.DefaultOptions()), nil,
		OrchestratorConfig{BatchSize: 2, Concurrency: 3}, nil)

	var mu sync.Mutex
	seen := 0
	res, err := o.Run(context.Background(), sources(5), func(CallResult) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 3, res.Parsed)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 3, seen)

	var files []string
	for _, a := range res.Audits {
		files = append(files, a.File)
	}
	assert.Equal(t, []string{"pkg/f00.go", "pkg/f01.go", "pkg/f02.go", "pkg/f03.go", "pkg/f04.go"}, files)

	require.Len(t, res.Calls, 3)
	assert.Equal(t, []string{"pkg/f00.go", "pkg/f01.go"}, res.Calls[0].Files)
	assert.Equal(t, []string{"pkg/f04.go"}, res.Calls[2].Files)
	assert.Equal(t, 3, res.Ledger.Len())
	assert.Equal(t, int64(300), res.Ledger.Totals().PromptTokens)

	// Static part is shared by every call.
	for _, req := range p.requests {
		assert.Equal(t, p.requests[0].System, req.System)
	}
}

func TestOrchestratorBudgetHalts(t *testing.T) {
	p := &fakeProvider{usage: Usage{PromptTokens: 1_000_000}}
	cfg := cost.DefaultConfig()
	cfg.MaxCostPerRun = 0.01
	budget, err := cost.NewBudget(cfg)
	require.NoError(t, err)

	o := NewOrchestrator(newFakeClient(t, p), prompt.NewBuilder(nil, prompt.DefaultOptions()), budget,
		OrchestratorConfig{BatchSize: 1, Concurrency: 1}, nil)

	res, err := o.Run(context.Background(), sources(4), nil)
	require.NoError(t, err)
	assert.True(t, res.BudgetHalted)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, p.requests, 1)
	assert.Equal(t, cost.BudgetExceeded, budget.Status(res.Ledger))
}

func TestOrchestratorCancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &fakeProvider{onCall: cancel}
	o := NewOrchestrator(newFakeClient(t, p), prompt.NewBuilder(nil, prompt.DefaultOptions()), nil,
		OrchestratorConfig{BatchSize: 1, Concurrency: 1}, nil)

	res, err := o.Run(ctx, sources(3), nil)
	require.NoError(t, err, "partial results are not an error")
	assert.True(t, res.Canceled)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Audits, 1)
	assert.Equal(t, "pkg/f00.go", res.Audits[0].File)
}

func TestOrchestratorNoUsableResult(t *testing.T) {
	p := &fakeProvider{fail: func([]string) error { return &StatusError{Provider: "xai", Code: 400, Body: "bad"} }}
	o := NewOrchestrator(newFakeClient(t, p), prompt.NewBuilder(nil, prompt.DefaultOptions()), nil,
		OrchestratorConfig{BatchSize: 2, Concurrency: 2}, nil)

	res, err := o.Run(context.Background(), sources(3), nil)
	assert.ErrorIs(t, err, ErrNoUsableResult)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Parsed)
	assert.NotNil(t, res.Audits)
}

func TestOrchestratorPartialFailureIsNotFatal(t *testing.T) {
	p := &fakeProvider{fail: func(files []string) error {
		if files[0] == "pkg/f01.go" {
			return &StatusError{Provider: "xai", Code: 400, Body: "bad"}
		}
		return nil
	}}
	o := NewOrchestrator(newFakeClient(t, p), prompt.NewBuilder(nil, prompt.DefaultOptions()), nil,
		OrchestratorConfig{BatchSize: 1, Concurrency: 2}, nil)

	res, err := o.Run(context.Background(), sources(3), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, CallFailed, res.Calls[1].State)
}

func TestOrchestratorEmptyInput(t *testing.T) {
	o := NewOrchestrator(newFakeClient(t, &fakeProvider{}), prompt.NewBuilder(nil, prompt.DefaultOptions()), nil,
		DefaultOrchestratorConfig(), nil)
	res, err := o.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Batches)
	assert.Empty(t, res.Audits)
}

func TestSplitSources(t *testing.T) {
	batches := splitSources(sources(5), 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Nil(t, splitSources(nil, 2))
}
