package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steveyegge/codeaudit/internal/cost"
	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/types"
)

// CallState is the lifecycle of one LLM call.
type CallState int

const (
	CallBuilding CallState = iota
	CallSending
	CallRetrying
	CallParsed
	CallFailed
)

func (s CallState) String() string {
	switch s {
	case CallBuilding:
		return "building"
	case CallSending:
		return "sending"
	case CallRetrying:
		return "retrying"
	case CallParsed:
		return "parsed"
	case CallFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s CallState) Terminal() bool {
	return s == CallParsed || s == CallFailed
}

// CallResult is always well-formed: a failed call has Err set, an empty
// Audits slice and the number of attempts made.
type CallResult struct {
	Files    []string          `json:"files"`
	State    CallState         `json:"-"`
	Audits   []types.FileAudit `json:"audits"`
	Err      error             `json:"-"`
	Attempts int               `json:"attempts"`
	// Transitions records every state the call passed through.
	Transitions []CallState      `json:"-"`
	Cost        types.CostRecord `json:"cost"`
	// Format is the ResponseFormats entry that accepted the response.
	Format string `json:"format,omitempty"`
	// DumpPath is set when raw output was written for diagnosis.
	DumpPath string `json:"dump_path,omitempty"`
}

func (r *CallResult) enter(s CallState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// ClientConfig configures request parameters and resilience.
type ClientConfig struct {
	MaxTokens         int
	Temperature       float64
	RequestsPerMinute int // 0 = unlimited
	Retry             RetryConfig
}

// DefaultClientConfig returns sensible defaults for audit calls.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxTokens:   8192,
		Temperature: 0.2,
		Retry:       DefaultRetryConfig(),
	}
}

// Client runs audit prompts against one provider. It is safe for concurrent
// use; the concurrency limit, rate limiter and circuit breaker are shared.
type Client struct {
	provider Provider
	cfg      ClientConfig
	retry    *retrier
	limiter  *rate.Limiter
	prices   *cost.PriceTable
	diag     *Diagnostics
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient wires a provider with retry, rate limiting and cost estimation.
// nil prices use the built-in table; nil diag disables dumps.
func NewClient(p Provider, cfg ClientConfig, prices *cost.PriceTable, diag *Diagnostics, logger *zap.Logger) (*Client, error) {
	if p == nil {
		return nil, errors.New("provider is required")
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil {
		prices = cost.NewPriceTable(nil)
	}
	if diag == nil {
		diag = NewDiagnostics("", logger)
	}
	c := &Client{
		provider: p,
		cfg:      cfg,
		retry:    newRetrier(cfg.Retry, logger),
		prices:   prices,
		diag:     diag,
		logger:   logger,
		now:      time.Now,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// Audit sends one prompt and parses the file audits out of the response.
// Transport failures and unusable responses are retried; once retries are
// exhausted the last raw response is dumped and a failed result returned.
func (c *Client) Audit(ctx context.Context, p prompt.Prompt) CallResult {
	res := CallResult{Files: p.Files, Audits: []types.FileAudit{}}
	res.enter(CallBuilding)

	req := Request{
		System:      p.Static,
		User:        p.Dynamic,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	var usage Usage
	var model string
	var lastShape *ShapeError

	res.enter(CallSending)
	attempts, err := c.retry.do(ctx, "file_audit",
		func(int, error) { res.enter(CallRetrying) },
		func(attemptCtx context.Context) error {
			lastShape = nil
			if c.limiter != nil {
				if err := c.limiter.Wait(attemptCtx); err != nil {
					return fmt.Errorf("rate limiter: %w", err)
				}
			}
			comp, err := c.provider.Complete(attemptCtx, req)
			if err != nil {
				var se *ShapeError
				if errors.As(err, &se) {
					lastShape = se
				}
				return err
			}
			// Every answered attempt was billed.
			usage.PromptTokens += comp.Usage.PromptTokens
			usage.CachedTokens += comp.Usage.CachedTokens
			usage.CompletionTokens += comp.Usage.CompletionTokens
			model = comp.Model

			audits, format, perr := ParseFileAudits(comp.Text)
			if perr != nil {
				lastShape = &ShapeError{Reason: perr.Error(), Raw: []byte(comp.Text), Dump: DumpFailedResponse}
				return lastShape
			}
			res.Audits = audits
			res.Format = format
			lastShape = nil
			return nil
		})
	res.Attempts = attempts
	res.Cost = c.record(model, usage)

	if err != nil {
		res.Err = err
		res.Audits = []types.FileAudit{}
		var statusErr *StatusError
		switch {
		case lastShape != nil && len(lastShape.Raw) > 0:
			res.DumpPath, _ = c.diag.Dump(lastShape.Dump, lastShape.Raw)
		case errors.As(err, &statusErr) && statusErr.Body != "":
			res.DumpPath, _ = c.diag.Dump(DumpErrorResponse, []byte(statusErr.Body))
		}
		res.enter(CallFailed)
		c.logger.Warn("LLM audit call failed",
			zap.Strings("files", p.Files),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return res
	}

	res.enter(CallParsed)
	c.logger.Debug("LLM audit call parsed",
		zap.Strings("files", p.Files),
		zap.Int("audits", len(res.Audits)),
		zap.String("format", res.Format),
		zap.Int("attempts", attempts),
		zap.Float64("cost", res.Cost.EstimatedCost))
	return res
}

func (c *Client) record(model string, u Usage) types.CostRecord {
	if model == "" {
		model = DefaultModels[c.provider.Name()]
	}
	price := c.prices.Lookup(c.provider.Name(), model)
	return types.CostRecord{
		Provider:         c.provider.Name(),
		Model:            model,
		Operation:        "file_audit",
		PromptTokens:     u.PromptTokens,
		CachedTokens:     u.CachedTokens,
		CompletionTokens: u.CompletionTokens,
		EstimatedCost:    price.Estimate(u.PromptTokens, u.CachedTokens, u.CompletionTokens),
		RecordedAt:       c.now().UTC(),
	}
}
