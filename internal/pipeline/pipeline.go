// Package pipeline wires the scanners, the task generator, the optional LLM
// review and run history into the operations the CLI exposes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/codeaudit/internal/ai"
	"github.com/steveyegge/codeaudit/internal/config"
	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/deduplication"
	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/scanner"
	"github.com/steveyegge/codeaudit/internal/storage"
	"github.com/steveyegge/codeaudit/internal/tags"
	"github.com/steveyegge/codeaudit/internal/tasks"
	"github.com/steveyegge/codeaudit/internal/types"
)

// ErrInvalidTarget is returned when the audit target does not exist or
// cannot be read.
var ErrInvalidTarget = errors.New("invalid target")

// ProviderFactory builds an LLM provider. It must fail with
// ai.ErrMissingCredentials when no API key is available.
type ProviderFactory func(ctx context.Context, cfg ai.ProviderConfig) (ai.Provider, error)

// Pipeline runs audits with one configuration.
type Pipeline struct {
	cfg         config.Config
	logger      *zap.Logger
	walker      *scanner.Walker
	static      *scanner.StaticScanner
	tagScanner  *tags.Scanner
	generator   *tasks.Generator
	newProvider ProviderFactory
	history     storage.History
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithProviderFactory replaces ai.NewProvider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(p *Pipeline) { p.newProvider = f }
}

// WithHistory records runs into h instead of opening the configured
// database. The pipeline does not close h.
func WithHistory(h storage.History) Option {
	return func(p *Pipeline) { p.history = h }
}

// WithClock overrides time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRetrySleep overrides the wait between LLM retries.
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// New validates cfg and builds the scanners and task generator.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{
		cfg:         cfg,
		newProvider: ai.NewProvider,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	exclusions, err := cfg.ExclusionPolicy()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.TaskPolicy()
	if err != nil {
		return nil, err
	}
	dedup, err := deduplication.New(cfg.Tasks.Dedup)
	if err != nil {
		return nil, err
	}
	generator, err := tasks.NewGenerator(policy, dedup, p.logger.Named("tasks"))
	if err != nil {
		return nil, err
	}

	p.walker = scanner.NewWalker(cfg.WalkOptions(), p.logger.Named("scanner"))
	p.static = scanner.NewStaticScanner(rules)
	p.tagScanner = tags.NewScanner(exclusions)
	p.generator = generator
	return p, nil
}

// ScanResult is the combined static and tag scan of a target.
type ScanResult struct {
	// Root is the directory file paths are relative to.
	Root    string
	Files   []types.FileAnalysis
	Skipped scanner.SkipStats
	// Git is the enclosing repository, nil outside one.
	Git *GitInfo
}

// Tags flattens the tags of every file in path order.
func (s *ScanResult) Tags() []types.AuditTag {
	out := []types.AuditTag{}
	for i := range s.Files {
		out = append(out, s.Files[i].Tags...)
	}
	return out
}

// Scan runs the static scanner and the tag scanner over target in one walk.
func (p *Pipeline) Scan(ctx context.Context, target string) (*ScanResult, error) {
	abs, err := resolveTarget(target)
	if err != nil {
		return nil, err
	}
	return p.scan(ctx, abs)
}

func (p *Pipeline) scan(ctx context.Context, abs string) (*ScanResult, error) {
	root, err := scanRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	info, err := DetectGit(root)
	if err != nil {
		p.logger.Warn("git metadata unavailable", zap.String("target", abs), zap.Error(err))
	}
	base := ""
	if info != nil {
		base = info.Root
	}

	res, err := p.walker.Walk(ctx, abs, func(f *scanner.File) types.FileAnalysis {
		return p.analyze(f, tagLocation(base, root, f.Path))
	})
	if err != nil {
		return nil, err
	}
	return &ScanResult{Root: root, Files: res.Files, Skipped: res.Skipped, Git: info}, nil
}

// analyze runs both scanners on f. location is the path tag exclusion is
// checked against in addition to f.Path.
func (p *Pipeline) analyze(f *scanner.File, location string) types.FileAnalysis {
	return types.FileAnalysis{
		Path:     f.Path,
		Category: f.Category,
		Lines:    len(f.Lines),
		Issues:   p.static.Analyze(f),
		Tags:     p.tagScanner.ScanAt(location, f.Path, f.Lines),
	}
}

// tagLocation returns rel as seen from the repository root base, or as an
// absolute slash path without its leading separator when the file lies
// outside base. Either form keeps the directories above the scan root.
func tagLocation(base, root, rel string) string {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if base != "" {
		if r, err := filepath.Rel(base, abs); err == nil && r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(r)
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(strings.TrimPrefix(abs, filepath.VolumeName(abs))), "/")
}

// Tasks scans target and generates tasks without an LLM review.
func (p *Pipeline) Tasks(ctx context.Context, target string) (*tasks.Result, *ScanResult, error) {
	scan, err := p.Scan(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return p.generator.Generate(scan.Files, nil), scan, nil
}

// AuditOptions selects the audit mode.
type AuditOptions struct {
	// LLM adds the LLM review of the highest-risk files.
	LLM bool
}

// AuditResult is everything one audit produced.
type AuditResult struct {
	Run   *types.Run
	Scan  *ScanResult
	Tasks *tasks.Result
	Git   *GitInfo

	// Set when the LLM review ran.
	LLM      *ai.RunResult
	Provider string
	Model    string
	Budget   cost.BudgetStatus
	Dumps    []string
	// Unread counts selected files that could not be re-read for the prompt.
	Unread int
	// Cached counts selected files whose audit came from the cache.
	Cached int
}

// Audit scans target, optionally reviews the riskiest files with an LLM and
// generates the merged task list. Missing credentials are reported before
// any scanning. A review that produced no usable result returns the scan
// based result together with ai.ErrNoUsableResult.
func (p *Pipeline) Audit(ctx context.Context, target string, opts AuditOptions) (*AuditResult, error) {
	abs, err := resolveTarget(target)
	if err != nil {
		return nil, err
	}

	var provider ai.Provider
	if opts.LLM {
		provider, err = p.newProvider(ctx, p.cfg.LLM.ProviderConfig())
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
	}

	run := &types.Run{
		ID:        uuid.NewString(),
		Target:    abs,
		Mode:      types.ModeStatic,
		Status:    types.RunCompleted,
		StartedAt: p.now().UTC(),
	}

	scan, err := p.scan(ctx, abs)
	if err != nil {
		return nil, err
	}
	result := &AuditResult{Run: run, Scan: scan}

	history, release := p.openHistory(ctx, scan.Root)
	defer release()

	var audits []types.FileAudit
	var reviewErr error
	if provider != nil {
		run.Mode = types.ModeLLM
		if reviewErr = p.review(ctx, provider, history, result); reviewErr != nil && result.LLM == nil {
			return nil, reviewErr
		}
		audits = result.LLM.Audits
	}

	result.Tasks = p.generator.Generate(scan.Files, audits)

	run.Files = len(scan.Files)
	run.TaskCount = len(result.Tasks.Tasks)
	run.FinishedAt = p.now().UTC()
	if llm := result.LLM; llm != nil {
		run.LLMCalls = llm.Ledger.Len()
		run.Cost = llm.Ledger.Totals().Cost
		if llm.Failed > 0 || llm.Skipped > 0 || llm.Canceled {
			run.Status = types.RunPartial
		}
	}
	if reviewErr != nil {
		run.Status = types.RunFailed
	}

	if info := scan.Git; info != nil {
		result.Git = info
		run.Branch = info.Branch
		run.Commit = info.Commit
	}

	p.record(ctx, history, result)
	return result, reviewErr
}

// review runs the LLM phase and stores its outcome on result. Files with a
// cached audit in history are not sent.
func (p *Pipeline) review(ctx context.Context, provider ai.Provider, history storage.History, result *AuditResult) error {
	llmCfg := p.cfg.LLM

	budget, err := cost.NewBudget(p.cfg.Cost)
	if err != nil {
		return err
	}
	clientCfg, err := llmCfg.ClientConfig()
	if err != nil {
		return err
	}
	if p.sleep != nil {
		clientCfg.Retry.Sleep = p.sleep
	}
	logger := p.logger.Named("llm")
	client, err := ai.NewClient(provider, clientCfg, budget.Prices(), ai.NewDiagnostics(llmCfg.DebugDir, logger), logger)
	if err != nil {
		return err
	}

	selected := prompt.SelectFiles(result.Scan.Files, llmCfg.MaxFiles)
	sources, unread := readSources(result.Scan.Root, selected)

	model := llmCfg.Model
	if model == "" {
		model = ai.DefaultModels[provider.Name()]
	}
	var cache *auditCache
	var cached []types.FileAudit
	if llmCfg.Cache && history != nil {
		cache = newAuditCache(history, provider.Name(), model, logger)
		sources, cached = cache.split(ctx, sources)
	}

	builder := prompt.NewBuilder(result.Scan.Files, llmCfg.PromptOptions())
	orch := ai.NewOrchestrator(client, builder, budget, llmCfg.OrchestratorConfig(), logger)

	runCtx := ctx
	if llmCfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(llmCfg.RunTimeout))
		defer cancel()
	}

	p.logger.Info("starting llm review",
		zap.String("provider", provider.Name()),
		zap.Int("files", len(sources)),
		zap.Int("unread", unread),
		zap.Int("cached", len(cached)))

	acc := NewAccumulator(logger)
	res, runErr := orch.Run(runCtx, sources, acc.Add)
	if cache != nil {
		// Hits are saved again so retention counts from their last use.
		cache.save(ctx, append(append([]types.FileAudit(nil), res.Audits...), cached...), p.now())
	}
	res.Audits = append(res.Audits, cached...)
	if len(cached) > 0 && errors.Is(runErr, ai.ErrNoUsableResult) {
		// The failed batches still mark the run partial.
		runErr = nil
	}

	result.LLM = &res
	result.Provider = provider.Name()
	result.Model = model
	if recs := res.Ledger.Records(); len(recs) > 0 {
		result.Model = recs[0].Model
	}
	result.Budget = budget.Status(res.Ledger)
	result.Dumps = acc.Dumps()
	result.Unread = unread
	result.Cached = len(cached)
	return runErr
}

// openHistory returns the injected store or opens the configured database.
// It returns nil when history is disabled or cannot be opened. release must
// be called once the store is no longer needed.
func (p *Pipeline) openHistory(ctx context.Context, root string) (h storage.History, release func()) {
	if p.history != nil {
		return p.history, func() {}
	}
	if !p.cfg.History.Enabled {
		return nil, func() {}
	}
	opened, err := storage.Open(ctx, storage.Config{Path: p.cfg.History.Path, Root: root})
	if err != nil {
		p.logger.Warn("run history unavailable", zap.Error(err))
		return nil, func() {}
	}
	return opened, func() { _ = opened.Close() }
}

// record stores the run in history. History problems never fail an audit.
func (p *Pipeline) record(ctx context.Context, h storage.History, result *AuditResult) {
	if h == nil {
		return
	}
	hcfg := p.cfg.History

	var costs []types.CostRecord
	if result.LLM != nil {
		costs = result.LLM.Ledger.Records()
	}
	if err := h.RecordRun(ctx, result.Run, result.Tasks.Tasks, costs); err != nil {
		p.logger.Warn("failed to record run", zap.String("run", result.Run.ID), zap.Error(err))
		return
	}
	if n, err := h.Prune(ctx, p.now(), hcfg.RetentionDays, hcfg.MaxRuns); err != nil {
		p.logger.Warn("failed to prune run history", zap.Error(err))
	} else if n > 0 {
		p.logger.Debug("pruned run history", zap.Int("runs", n))
	}
}

// resolveTarget makes target absolute and checks that it exists.
func resolveTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidTarget)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return abs, nil
}
