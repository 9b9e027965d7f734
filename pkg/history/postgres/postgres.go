// Package postgres provides a PostgreSQL implementation of history.Store.
// It uses pgx/v5 for connection pooling and stores one row per executed
// batch.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codepool-dev/codepool/pkg/history"
)

// Store is a PostgreSQL-backed history.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements history.Store at compile time.
var _ history.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Type identifies the store implementation.
func (s *Store) Type() string { return "postgres" }

// SaveRun persists a run record.
func (s *Store) SaveRun(ctx context.Context, rec *history.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, runtime, fragments, log, exit_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID, rec.Runtime, rec.Fragments, rec.Log, rec.ExitCode,
		rec.Duration.Milliseconds(), rec.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return history.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*history.Record, error) {
	var rec history.Record
	var durationMs int64

	err := s.pool.QueryRow(ctx, `
		SELECT id, runtime, fragments, log, exit_code, duration_ms, created_at
		FROM runs
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.Runtime, &rec.Fragments, &rec.Log, &rec.ExitCode,
		&durationMs, &rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first, up to limit (0 = all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*history.Record, error) {
	query := `
		SELECT id, runtime, fragments, log, exit_code, duration_ms, created_at
		FROM runs
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var recs []*history.Record
	for rows.Next() {
		var rec history.Record
		var durationMs int64
		if err := rows.Scan(
			&rec.ID, &rec.Runtime, &rec.Fragments, &rec.Log, &rec.ExitCode,
			&durationMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// DeleteRun removes a run by ID.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM runs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return history.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
