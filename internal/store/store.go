// File: internal/store/store.go

// Package store persists run history to PostgreSQL. Persistence is optional:
// without a configured database URL no store is constructed and runs proceed
// in memory only.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// Store is the PostgreSQL implementation of schemas.ResultStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.ResultStore = (*Store)(nil)

// New wraps an existing pool, verifying connectivity and ensuring the schema.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{pool: pool, log: logger.Named("store")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect opens a pgx pool for the given URL and returns a ready store.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	passed      INT NOT NULL,
	failed      INT NOT NULL,
	aborted     INT NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_results (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	feature       TEXT NOT NULL,
	scenario      TEXT NOT NULL,
	uri           TEXT NOT NULL,
	status        TEXT NOT NULL,
	failure_index INT NOT NULL,
	reason        TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL,
	steps         JSONB NOT NULL,
	turns         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scenario_results_run_idx ON scenario_results (run_id);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure run-history schema: %w", err)
	}
	return nil
}

// PersistRun writes a run and its scenario results in one transaction.
func (s *Store) PersistRun(ctx context.Context, run *schemas.RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	passed, failed, aborted := run.Counts()
	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, passed, failed, aborted) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.RunID, run.StartedAt.UTC(), run.Duration.Milliseconds(), passed, failed, aborted,
	); err != nil {
		return fmt.Errorf("failed to insert run row: %w", err)
	}

	if len(run.Scenarios) > 0 {
		if err := s.persistScenarios(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run persisted",
		zap.String("run_id", run.RunID),
		zap.Int("scenarios", len(run.Scenarios)))
	return nil
}

func (s *Store) persistScenarios(ctx context.Context, tx pgx.Tx, run *schemas.RunResult) error {
	rows := make([][]any, len(run.Scenarios))
	for i, sc := range run.Scenarios {
		steps, err := json.Marshal(sc.Steps)
		if err != nil {
			return fmt.Errorf("failed to encode steps for %q: %w", sc.Scenario, err)
		}
		turns, err := json.Marshal(sc.Turns)
		if err != nil {
			return fmt.Errorf("failed to encode turns for %q: %w", sc.Scenario, err)
		}
		rows[i] = []any{
			run.RunID, sc.Feature, sc.Scenario, sc.URI,
			string(sc.Status), sc.FailureIndex, sc.Reason,
			sc.StartedAt.UTC(), sc.Duration.Milliseconds(),
			steps, turns,
		}
	}

	count, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"scenario_results"},
		[]string{"run_id", "feature", "scenario", "uri", "status", "failure_index", "reason", "started_at", "duration_ms", "steps", "turns"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy scenario results: %w", err)
	}
	if int(count) != len(run.Scenarios) {
		return fmt.Errorf("mismatch in copied scenario count: expected %d, got %d", len(run.Scenarios), count)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
