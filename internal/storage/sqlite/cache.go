package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/codeaudit/internal/types"
)

// CacheKey identifies the LLM reviewer a cached audit came from.
type CacheKey struct {
	Provider string
	Model    string
}

// CachedAudit is a stored LLM audit of one file version.
type CachedAudit struct {
	Path        string
	ContentHash string
	Audit       types.FileAudit
}

// CachedAudits returns the audits stored under key whose content hash still
// matches hashes, keyed by path. Paths with a different hash are misses.
func (s *Store) CachedAudits(ctx context.Context, key CacheKey, hashes map[string]string) (map[string]types.FileAudit, error) {
	out := map[string]types.FileAudit{}
	if len(hashes) == 0 {
		return out, nil
	}

	paths := make([]any, 0, len(hashes)+2)
	paths = append(paths, key.Provider, key.Model)
	for p := range hashes {
		paths = append(paths, p)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, content_hash, audit
		FROM file_audit_cache
		WHERE provider = ? AND model = ? AND path IN (`+placeholders+`)
	`, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path, hash, raw string
		if err := rows.Scan(&path, &hash, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan cached audit: %w", err)
		}
		if hashes[path] != hash {
			continue
		}
		var audit types.FileAudit
		if err := json.Unmarshal([]byte(raw), &audit); err != nil {
			// A row this release cannot read is a miss.
			continue
		}
		out[path] = audit
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit cache rows: %w", err)
	}
	return out, nil
}

// StoreAudits upserts audits under key in one transaction.
func (s *Store) StoreAudits(ctx context.Context, key CacheKey, audits []CachedAudit, now time.Time) error {
	if len(audits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, a := range audits {
		raw, err := json.Marshal(a.Audit)
		if err != nil {
			return fmt.Errorf("failed to encode audit for %s: %w", a.Path, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO file_audit_cache (path, content_hash, provider, model, audit, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path, provider, model) DO UPDATE SET
				content_hash = excluded.content_hash,
				audit = excluded.audit,
				updated_at = excluded.updated_at
		`, a.Path, a.ContentHash, key.Provider, key.Model, string(raw), toMillis(now)); err != nil {
			return fmt.Errorf("failed to store audit for %s: %w", a.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit cache: %w", err)
	}
	return nil
}
