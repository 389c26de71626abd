package sqlite

import (
	"context"
	"fmt"
	"time"
)

// Prune deletes runs started before now minus retentionDays, then trims the
// oldest runs beyond maxRuns (0 = no cap). Tasks and cost records go with
// their run. Cached file audits not refreshed within retentionDays are
// dropped too. Returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, now time.Time, retentionDays, maxRuns int) (int, error) {
	if retentionDays < 0 || maxRuns < 0 {
		return 0, fmt.Errorf("retention days and max runs cannot be negative")
	}

	total := 0

	if retentionDays > 0 {
		cutoff := now.AddDate(0, 0, -retentionDays)
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, toMillis(cutoff))
		if err != nil {
			return total, fmt.Errorf("failed to delete old runs: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to count deleted runs: %w", err)
		}
		total += int(n)

		if _, err := s.db.ExecContext(ctx, `DELETE FROM file_audit_cache WHERE updated_at < ?`, toMillis(cutoff)); err != nil {
			return total, fmt.Errorf("failed to delete stale cached audits: %w", err)
		}
	}

	if maxRuns > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM runs
			WHERE id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?
			)
		`, maxRuns)
		if err != nil {
			return total, fmt.Errorf("failed to trim runs: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to count trimmed runs: %w", err)
		}
		total += int(n)
	}

	return total, nil
}
