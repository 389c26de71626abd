package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/codeaudit/internal/types"
)

// ModelSpend is aggregated LLM usage for one provider/model pair.
type ModelSpend struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	Runs             int     `json:"runs"`
	Calls            int     `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CachedTokens     int64   `json:"cached_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// CostRecords returns the cost records of a run in the order they were made.
func (s *Store) CostRecords(ctx context.Context, runID string) ([]types.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, model, operation, prompt_tokens, cached_tokens,
		       completion_tokens, estimated_cost, recorded_at
		FROM cost_records
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []types.CostRecord{}
	for rows.Next() {
		var r types.CostRecord
		var recorded int64
		if err := rows.Scan(&r.Provider, &r.Model, &r.Operation, &r.PromptTokens,
			&r.CachedTokens, &r.CompletionTokens, &r.EstimatedCost, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		r.RecordedAt = fromMillis(recorded)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cost rows: %w", err)
	}
	return records, nil
}

// SpendByModel aggregates cost records made at or after since, highest
// spend first. A zero since covers all history.
func (s *Store) SpendByModel(ctx context.Context, since time.Time) ([]ModelSpend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, model,
		       COUNT(DISTINCT run_id), COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(cached_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(estimated_cost), 0)
		FROM cost_records
		WHERE recorded_at >= ?
		GROUP BY provider, model
		ORDER BY SUM(estimated_cost) DESC, provider, model
	`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query spend: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ModelSpend
	for rows.Next() {
		var m ModelSpend
		if err := rows.Scan(&m.Provider, &m.Model, &m.Runs, &m.Calls,
			&m.PromptTokens, &m.CachedTokens, &m.CompletionTokens, &m.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan spend: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating spend rows: %w", err)
	}
	return out, nil
}
