// Package storage defines the run history interface and opens its backend.
package storage

import (
	"context"
	"path/filepath"
	"time"

	"github.com/steveyegge/codeaudit/internal/storage/sqlite"
	"github.com/steveyegge/codeaudit/internal/types"
)

// History defines the interface for run history backends
type History interface {
	// Runs
	RecordRun(ctx context.Context, run *types.Run, tasks []types.Task, costs []types.CostRecord) error
	GetRun(ctx context.Context, id string) (*types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*types.Run, error)
	RunTasks(ctx context.Context, runID string) ([]types.Task, error)

	// LLM spend
	CostRecords(ctx context.Context, runID string) ([]types.CostRecord, error)
	SpendByModel(ctx context.Context, since time.Time) ([]sqlite.ModelSpend, error)

	// LLM audit cache
	CachedAudits(ctx context.Context, key sqlite.CacheKey, hashes map[string]string) (map[string]types.FileAudit, error)
	StoreAudits(ctx context.Context, key sqlite.CacheKey, audits []sqlite.CachedAudit, now time.Time) error

	// Retention
	Prune(ctx context.Context, now time.Time, retentionDays, maxRuns int) (int, error)

	// Lifecycle
	Close() error
}

var _ History = (*sqlite.Store)(nil)

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path. Relative paths resolve against
	// Root.
	// Default: ".codeaudit/history.db"
	Path string
	Root string
}

// DefaultPath is used when Config.Path is empty.
const DefaultPath = ".codeaudit/history.db"

// ResolvePath returns the absolute database path for cfg.
func (c Config) ResolvePath() string {
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// Open opens the SQLite history backend.
func Open(ctx context.Context, cfg Config) (History, error) {
	return sqlite.New(ctx, cfg.ResolvePath())
}
