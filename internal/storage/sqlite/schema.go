package sqlite

import "github.com/steveyegge/codeaudit/internal/storage/migrations"

// Timestamps are stored as unix milliseconds so that retention queries can
// compare them numerically.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "runs and tasks",
		Up: `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    target TEXT NOT NULL,
    branch TEXT NOT NULL DEFAULT '',
    commit_hash TEXT NOT NULL DEFAULT '',
    mode TEXT NOT NULL CHECK(mode IN ('static', 'llm')),
    status TEXT NOT NULL CHECK(status IN ('completed', 'partial', 'failed')),
    files INTEGER NOT NULL DEFAULT 0,
    task_count INTEGER NOT NULL DEFAULT 0,
    llm_calls INTEGER NOT NULL DEFAULT 0,
    cost REAL NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);

CREATE TABLE IF NOT EXISTS tasks (
    run_id TEXT NOT NULL,
    id TEXT NOT NULL,
    priority TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL,
    labels TEXT NOT NULL DEFAULT '[]',
    file TEXT NOT NULL DEFAULT '',
    line INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, id),
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tasks_file ON tasks(file);
`,
		Down: `
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS runs;
`,
	},
	{
		Version:     2,
		Description: "llm cost records",
		Up: `
CREATE TABLE IF NOT EXISTS cost_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    operation TEXT NOT NULL,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,
    cached_tokens INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    estimated_cost REAL NOT NULL DEFAULT 0,
    recorded_at INTEGER NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cost_records_run ON cost_records(run_id);
CREATE INDEX IF NOT EXISTS idx_cost_records_recorded_at ON cost_records(recorded_at);
`,
		Down: `
DROP TABLE IF EXISTS cost_records;
`,
	},
	{
		Version:     3,
		Description: "llm file audit cache",
		Up: `
CREATE TABLE IF NOT EXISTS file_audit_cache (
    path TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    audit TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (path, provider, model)
);

CREATE INDEX IF NOT EXISTS idx_file_audit_cache_updated_at ON file_audit_cache(updated_at);
`,
		Down: `
DROP TABLE IF EXISTS file_audit_cache;
`,
	},
}
