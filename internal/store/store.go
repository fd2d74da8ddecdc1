package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists run history in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

// New wraps an existing pool.
func New(pool DBPool, logger *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}
}

// Open connects to url, verifies the connection and makes sure the schema
// exists. The caller closes the returned pool.
func Open(ctx context.Context, url string, logger *zap.Logger) (*Store, *pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := New(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    requirement TEXT NOT NULL,
    base_url TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    total INTEGER NOT NULL,
    validated INTEGER NOT NULL,
    with_selectors INTEGER NOT NULL,
    success_rate DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_results (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    validated BOOLEAN NOT NULL,
    attempts INTEGER NOT NULL,
    errors TEXT[] NOT NULL DEFAULT '{}',
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

// EnsureSchema creates the history tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

var scenarioColumns = []string{"run_id", "position", "name", "validated", "attempts", "errors"}

// SaveRun stores a run and its scenario results in one transaction.
func (s *Store) SaveRun(ctx context.Context, rec schemas.RunRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, `
        INSERT INTO runs (id, requirement, base_url, started_at, finished_at, total, validated, with_selectors, success_rate)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Requirement, rec.BaseURL,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		rec.Summary.Total, rec.Summary.Validated, rec.Summary.WithSelectors, rec.Summary.SuccessRate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.ID, err)
	}

	if len(rec.Scenarios) > 0 {
		rows := make([][]any, len(rec.Scenarios))
		for i, sc := range rec.Scenarios {
			errs := sc.Errors
			if errs == nil {
				errs = []string{}
			}
			rows[i] = []any{rec.ID, i, sc.Name, sc.Validated, sc.Attempts, errs}
		}
		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"scenario_results"}, scenarioColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy scenario results: %w", err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("mismatch in copied scenario count: expected %d, got %d", len(rows), copied)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run stored.", zap.String("run_id", rec.ID), zap.Int("scenarios", len(rec.Scenarios)))
	return nil
}

// ListRuns returns the most recent runs, newest first, without their
// scenario results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, requirement, base_url, started_at, finished_at, total, validated, with_selectors, success_rate
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []schemas.RunRecord
	for rows.Next() {
		var r schemas.RunRecord
		if err := rows.Scan(
			&r.ID, &r.Requirement, &r.BaseURL, &r.StartedAt, &r.FinishedAt,
			&r.Summary.Total, &r.Summary.Validated, &r.Summary.WithSelectors, &r.Summary.SuccessRate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// ScenarioResults returns the stored scenario outcomes of one run in plan order.
func (s *Store) ScenarioResults(ctx context.Context, runID string) ([]schemas.ScenarioRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT name, validated, attempts, errors
        FROM scenario_results
        WHERE run_id = $1
        ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario results: %w", err)
	}
	defer rows.Close()

	var out []schemas.ScenarioRecord
	for rows.Next() {
		var sc schemas.ScenarioRecord
		if err := rows.Scan(&sc.Name, &sc.Validated, &sc.Attempts, &sc.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan scenario row: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
