// Package persistence stores job state in SQLite so an interrupted job can be
// resumed from its last completed step.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/guangtouwangba/open-deep-research/internal/model"
)

// DBFile is the database file name created under the store root.
const DBFile = "jobs.db"

// ErrJobNotFound is returned by Load for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// NodeResult is the durable record of one synthesized node.
type NodeResult struct {
	NodeID     string          `json:"node_id"`
	Synthesis  string          `json:"synthesis"`
	Confidence float64         `json:"confidence"`
	Findings   []model.Finding `json:"findings,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Store defines the persistence interface for jobs and their node results.
type Store interface {
	// Job state
	Create(ctx context.Context, goal string, depth model.Depth, budget int) (string, error)
	Save(ctx context.Context, job *model.Job) error
	Load(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, limit int) ([]model.JobSummary, error)

	// Per-node results log, one entry per synthesized node
	RecordNodeResult(ctx context.Context, jobID string, result NodeResult) error
	NodeResults(ctx context.Context, jobID string) ([]NodeResult, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	locks *jobLocks
}

// NewSQLiteStore opens (creating if needed) the job database under root.
// Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, root string) (*SQLiteStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		filepath.Join(root, DBFile))
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each call gets its own database, shared across that store's connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:mem-%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	// _pragma parameters are applied to every new connection
	db, err := sql.Open("sqlite", connStr+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Allow 2 connections: one for primary queries, one for subqueries
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db, locks: newJobLocks()}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// newJobID returns a short random id.
func newJobID() string {
	return uuid.NewString()[:8]
}
