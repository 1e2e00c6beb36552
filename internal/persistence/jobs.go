package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// Create inserts a new pending job and returns its id.
func (s *SQLiteStore) Create(ctx context.Context, goal string, depth model.Depth, budget int) (string, error) {
	job := model.NewJob(newJobID(), goal, depth, budget)

	plan, state, err := encodeJob(job)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, goal, depth, status, stage, iteration, budget, plan, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.Goal, string(job.Depth), string(job.Status), string(job.Stage), job.Iteration, job.Budget,
		plan, state, job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert job: %w", err)
	}
	return job.ID, nil
}

// Save writes the full job state in one transaction and stamps UpdatedAt.
// Uses ON CONFLICT to make saves idempotent.
func (s *SQLiteStore) Save(ctx context.Context, job *model.Job) error {
	s.locks.Lock(job.ID)
	defer s.locks.Unlock(job.ID)

	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}

	plan, state, err := encodeJob(job)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, goal, depth, status, stage, iteration, budget, plan, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			goal = excluded.goal,
			depth = excluded.depth,
			status = excluded.status,
			stage = excluded.stage,
			iteration = excluded.iteration,
			budget = excluded.budget,
			plan = excluded.plan,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, job.ID, job.Goal, string(job.Depth), string(job.Status), string(job.Stage), job.Iteration, job.Budget,
		plan, state, job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns the stored job, or ErrJobNotFound.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*model.Job, error) {
	var plan, state string
	err := s.db.QueryRowContext(ctx, `SELECT plan, state FROM jobs WHERE id = ?`, id).Scan(&plan, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return decodeJob(plan, state)
}

// List returns job summaries, newest first. A limit <= 0 returns all jobs.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]model.JobSummary, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT plan, state FROM jobs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var out []model.JobSummary
	for rows.Next() {
		var plan, state string
		if err := rows.Scan(&plan, &state); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job, err := decodeJob(plan, state)
		if err != nil {
			return nil, err
		}
		out = append(out, job.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

// RecordNodeResult writes the log entry for result.NodeID. Recording the same
// node again replaces its entry and keeps its position in the log.
func (s *SQLiteStore) RecordNodeResult(ctx context.Context, jobID string, result NodeResult) error {
	s.locks.Lock(jobID)
	defer s.locks.Unlock(jobID)

	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now().UTC()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode node result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_results (job_id, node_id, result, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id, node_id) DO UPDATE SET
			result = excluded.result,
			recorded_at = excluded.recorded_at
	`, jobID, result.NodeID, string(data), result.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record result for node %s: %w", result.NodeID, err)
	}
	return nil
}

// NodeResults returns the job's node results in the order nodes were first recorded.
func (s *SQLiteStore) NodeResults(ctx context.Context, jobID string) ([]NodeResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result FROM node_results
		WHERE job_id = ?
		ORDER BY id ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node results: %w", err)
	}
	defer rows.Close()

	var out []NodeResult
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan node result: %w", err)
		}
		var r NodeResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode node result: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node results: %w", err)
	}
	return out, nil
}

// encodeJob splits a job into its plan column and the remaining state.
func encodeJob(job *model.Job) (plan, state string, err error) {
	p, err := json.Marshal(job.Plan)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode plan: %w", err)
	}

	rest := *job
	rest.Plan = nil
	st, err := json.Marshal(&rest)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode job state: %w", err)
	}
	return string(p), string(st), nil
}

func decodeJob(plan, state string) (*model.Job, error) {
	job := &model.Job{}
	if err := json.Unmarshal([]byte(state), job); err != nil {
		return nil, fmt.Errorf("failed to decode job state: %w", err)
	}
	if err := json.Unmarshal([]byte(plan), &job.Plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if job.Completed == nil {
		job.Completed = []string{}
	}
	if job.Findings == nil {
		job.Findings = []model.Finding{}
	}
	if job.Conflicts == nil {
		job.Conflicts = []string{}
	}
	return job, nil
}
