package pipeline

import (
	"sync"

	"go.uber.org/zap"

	"github.com/steveyegge/codeaudit/internal/ai"
)

// Accumulator collects call results as batches finish. It is the only
// place concurrent batches write to, and it is safe for concurrent use.
type Accumulator struct {
	mu      sync.Mutex
	results []ai.CallResult
	dumps   []string
	logger  *zap.Logger
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator(logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{logger: logger}
}

// Add records one finished call. Its signature matches the orchestrator's
// result callback.
func (a *Accumulator) Add(r ai.CallResult) {
	a.mu.Lock()
	a.results = append(a.results, r)
	if r.DumpPath != "" {
		a.dumps = append(a.dumps, r.DumpPath)
	}
	done := len(a.results)
	a.mu.Unlock()

	fields := []zap.Field{
		zap.Strings("files", r.Files),
		zap.String("state", r.State.String()),
		zap.Int("attempts", r.Attempts),
		zap.Int("audits", len(r.Audits)),
		zap.Int("done", done),
	}
	if r.Err != nil {
		a.logger.Warn("llm batch failed", append(fields, zap.Error(r.Err))...)
		return
	}
	a.logger.Debug("llm batch finished", fields...)
}

// Len returns the number of calls recorded so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Dumps returns the diagnostic files written by failed calls.
func (a *Accumulator) Dumps() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.dumps...)
}
