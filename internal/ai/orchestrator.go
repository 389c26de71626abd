package ai

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/types"
)

// OrchestratorConfig controls batching.
type OrchestratorConfig struct {
	BatchSize   int // files per call (default: 5)
	Concurrency int // batches in flight (default: 2)
}

// DefaultOrchestratorConfig returns the defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{BatchSize: 5, Concurrency: 2}
}

// Orchestrator splits sources into fixed-size batches and audits them with
// bounded concurrency. Each batch is one logical call; its retries stay
// inside Client.Audit and are never run in parallel.
type Orchestrator struct {
	client  *Client
	builder *prompt.Builder
	budget  *cost.Budget
	cfg     OrchestratorConfig
	logger  *zap.Logger
}

// NewOrchestrator builds an orchestrator. budget may be nil for no limit.
func NewOrchestrator(client *Client, builder *prompt.Builder, budget *cost.Budget, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultOrchestratorConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{client: client, builder: builder, budget: budget, cfg: cfg, logger: logger}
}

// RunResult is the outcome of a run. It is valid even when the run was
// canceled or halted by the budget: whatever finished is in it.
type RunResult struct {
	Calls        []CallResult      `json:"calls"`
	Audits       []types.FileAudit `json:"audits"`
	Ledger       cost.Ledger       `json:"-"`
	Batches      int               `json:"batches"`
	Parsed       int               `json:"parsed"`
	Failed       int               `json:"failed"`
	Skipped      int               `json:"skipped"`
	BudgetHalted bool              `json:"budget_halted"`
	Canceled     bool              `json:"canceled"`
}

// Run audits sources. onResult, if set, is called as each batch finishes and
// may be called concurrently. The ledger and audits are folded in batch
// order so output does not depend on completion order.
//
// A run where every attempted batch failed returns ErrNoUsableResult along
// with the (well-formed) result.
func (o *Orchestrator) Run(ctx context.Context, sources []prompt.Source, onResult func(CallResult)) (RunResult, error) {
	batches := splitSources(sources, o.cfg.BatchSize)
	results := make([]*CallResult, len(batches))

	var (
		mu      sync.Mutex
		running cost.Ledger
		halted  bool
	)

	// A slot is taken before the budget check so that, at concurrency 1,
	// every check sees the cost of all earlier batches.
	slots := semaphore.NewWeighted(int64(o.cfg.Concurrency))

	// Failures are carried in CallResult, so no goroutine returns an error
	// and one bad batch never cancels its siblings.
	var g errgroup.Group

	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			break
		}
		if o.budget != nil {
			mu.Lock()
			ok, reason := o.budget.CanProceed(running)
			mu.Unlock()
			if !ok {
				slots.Release(1)
				o.logger.Warn("halting LLM batches", zap.String("reason", reason), zap.Int("remaining", len(batches)-i))
				halted = true
				break
			}
		}

		g.Go(func() error {
			defer slots.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			res := o.client.Audit(ctx, o.builder.Build(batch))
			mu.Lock()
			running = running.Append(res.Cost)
			results[i] = &res
			mu.Unlock()
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := RunResult{
		Batches:      len(batches),
		Audits:       []types.FileAudit{},
		BudgetHalted: halted,
		Canceled:     ctx.Err() != nil,
	}
	for _, r := range results {
		if r == nil {
			out.Skipped++
			continue
		}
		out.Calls = append(out.Calls, *r)
		out.Ledger = out.Ledger.Append(r.Cost)
		if r.State == CallParsed {
			out.Parsed++
			out.Audits = append(out.Audits, r.Audits...)
		} else {
			out.Failed++
		}
	}

	o.logger.Info("LLM audit finished",
		zap.Int("batches", out.Batches),
		zap.Int("parsed", out.Parsed),
		zap.Int("failed", out.Failed),
		zap.Int("skipped", out.Skipped),
		zap.Float64("cost", out.Ledger.Totals().Cost))

	if len(out.Calls) > 0 && out.Parsed == 0 && !out.Canceled {
		return out, fmt.Errorf("%w: %d of %d batches failed", ErrNoUsableResult, out.Failed, out.Batches)
	}
	return out, nil
}

func splitSources(sources []prompt.Source, size int) [][]prompt.Source {
	var out [][]prompt.Source
	for start := 0; start < len(sources); start += size {
		end := start + size
		if end > len(sources) {
			end = len(sources)
		}
		out = append(out, sources[start:end])
	}
	return out
}
