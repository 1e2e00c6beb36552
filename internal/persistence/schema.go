package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		goal TEXT NOT NULL,
		depth TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		budget INTEGER NOT NULL,
		plan TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

	CREATE TABLE IF NOT EXISTS node_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		result TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_node_results_job ON node_results(job_id, id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_node_results_node ON node_results(job_id, node_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
