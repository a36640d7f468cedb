package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoCodeAlone/migrate/migration"
)

// PGStore persists the ledger in a PostgreSQL migration_records table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore on pool and ensures the migration_records
// table exists. The store takes ownership of pool; Close closes it.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS migration_records (
		version           TEXT PRIMARY KEY,
		description       TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		executed_at       TIMESTAMPTZ NOT NULL,
		execution_time_ms DOUBLE PRECISION,
		error_message     TEXT NOT NULL DEFAULT '',
		checksum          TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return nil, fmt.Errorf("create migration_records table: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Pool returns the underlying pgxpool.Pool.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PGStore) Load(ctx context.Context) ([]migration.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT version, description, status, executed_at, execution_time_ms, error_message, checksum
		 FROM migration_records ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query migration_records: %w", err)
	}
	defer rows.Close()

	var records []migration.Record
	for rows.Next() {
		var (
			rec    migration.Record
			status string
		)
		if err := rows.Scan(&rec.Version, &rec.Description, &status,
			&rec.ExecutedAt, &rec.ExecutionTimeMs, &rec.ErrorMessage, &rec.Checksum); err != nil {
			return nil, fmt.Errorf("scan migration record: %w", err)
		}
		rec.Status = migration.Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) Save(ctx context.Context, records []migration.Record) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM migration_records`); err != nil {
		return fmt.Errorf("clear migration_records: %w", err)
	}
	for _, rec := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO migration_records
			 (version, description, status, executed_at, execution_time_ms, error_message, checksum)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rec.Version, rec.Description, string(rec.Status),
			rec.ExecutedAt, rec.ExecutionTimeMs, rec.ErrorMessage, rec.Checksum)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", rec.Version, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
