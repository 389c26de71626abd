package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/codeaudit/internal/prompt"
	"github.com/steveyegge/codeaudit/internal/storage"
	"github.com/steveyegge/codeaudit/internal/storage/sqlite"
	"github.com/steveyegge/codeaudit/internal/types"
)

// auditCache reuses LLM audits of files whose content has not changed since
// the same provider and model last reviewed them. Cache failures only cost
// a fresh review.
type auditCache struct {
	history storage.History
	key     sqlite.CacheKey
	logger  *zap.Logger
	hashes  map[string]string
}

func newAuditCache(h storage.History, provider, model string, logger *zap.Logger) *auditCache {
	return &auditCache{
		history: h,
		key:     sqlite.CacheKey{Provider: provider, Model: model},
		logger:  logger,
		hashes:  map[string]string{},
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// split returns the sources that still need a review and the cached audits
// of the rest, both in source order.
func (c *auditCache) split(ctx context.Context, sources []prompt.Source) ([]prompt.Source, []types.FileAudit) {
	for _, s := range sources {
		c.hashes[s.Path] = contentHash(s.Content)
	}
	hits, err := c.history.CachedAudits(ctx, c.key, c.hashes)
	if err != nil {
		c.logger.Warn("audit cache unavailable", zap.Error(err))
		return sources, nil
	}

	pending := make([]prompt.Source, 0, len(sources))
	var cached []types.FileAudit
	for _, s := range sources {
		audit, ok := hits[s.Path]
		if !ok {
			pending = append(pending, s)
			continue
		}
		audit.File = s.Path
		cached = append(cached, audit)
	}
	if len(cached) > 0 {
		c.logger.Debug("reusing cached audits", zap.Int("files", len(cached)), zap.Int("pending", len(pending)))
	}
	return pending, cached
}

// save stores audits of files seen by split. Audits naming any other path
// are not cached.
func (c *auditCache) save(ctx context.Context, audits []types.FileAudit, now time.Time) {
	entries := make([]sqlite.CachedAudit, 0, len(audits))
	for _, a := range audits {
		hash, ok := c.hashes[a.File]
		if !ok {
			continue
		}
		entries = append(entries, sqlite.CachedAudit{Path: a.File, ContentHash: hash, Audit: a})
	}
	if err := c.history.StoreAudits(ctx, c.key, entries, now); err != nil {
		c.logger.Warn("failed to update audit cache", zap.Error(err))
	}
}
