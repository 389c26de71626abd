package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/steveyegge/codeaudit/internal/types"
)

// ErrRunNotFound is returned when a run ID has no record.
var ErrRunNotFound = errors.New("run not found")

// RecordRun stores a finished run together with its tasks and cost records
// in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *types.Run, tasks []types.Task, costs []types.CostRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, target, branch, commit_hash, mode, status,
			files, task_count, llm_calls, cost, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Target, run.Branch, run.Commit, string(run.Mode), string(run.Status),
		run.Files, run.TaskCount, run.LLMCalls, run.Cost,
		toMillis(run.StartedAt), toMillis(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	taskStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (run_id, id, priority, title, description, source, labels, file, line, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare task insert: %w", err)
	}
	defer func() { _ = taskStmt.Close() }()

	for i := range tasks {
		t := &tasks[i]
		labels, err := json.Marshal(nonNil(t.Labels))
		if err != nil {
			return fmt.Errorf("failed to encode labels for %s: %w", t.ID, err)
		}
		if _, err := taskStmt.ExecContext(ctx,
			run.ID, t.ID, string(t.Priority), t.Title, t.Description, string(t.Source),
			string(labels), t.File, t.Line, t.Message,
		); err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
		}
	}

	costStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_records (
			run_id, provider, model, operation,
			prompt_tokens, cached_tokens, completion_tokens, estimated_cost, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cost insert: %w", err)
	}
	defer func() { _ = costStmt.Close() }()

	for _, c := range costs {
		if _, err := costStmt.ExecContext(ctx,
			run.ID, c.Provider, c.Model, c.Operation,
			c.PromptTokens, c.CachedTokens, c.CompletionTokens, c.EstimatedCost,
			toMillis(c.RecordedAt),
		); err != nil {
			return fmt.Errorf("failed to insert cost record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, target, branch, commit_hash, mode, status,
	files, task_count, llm_calls, cost, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*types.Run, error) {
	run := &types.Run{}
	var mode, status string
	var started, finished int64
	if err := row.Scan(
		&run.ID, &run.Target, &run.Branch, &run.Commit, &mode, &status,
		&run.Files, &run.TaskCount, &run.LLMCalls, &run.Cost, &started, &finished,
	); err != nil {
		return nil, err
	}
	run.Mode = types.RunMode(mode)
	run.Status = types.RunStatus(status)
	run.StartedAt = fromMillis(started)
	run.FinishedAt = fromMillis(finished)
	return run, nil
}

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*types.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*types.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// RunTasks returns the tasks recorded for a run in priority order.
func (s *Store) RunTasks(ctx context.Context, runID string) ([]types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, priority, title, description, source, labels, file, line, message
		FROM tasks
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []types.Task{}
	for rows.Next() {
		var t types.Task
		var priority, source, labels string
		if err := rows.Scan(&t.ID, &priority, &t.Title, &t.Description, &source,
			&labels, &t.File, &t.Line, &t.Message); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Priority = types.Priority(priority)
		t.Source = types.TaskSource(source)
		if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels for %s: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	types.SortTasks(tasks)
	return tasks, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
