package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GoCodeAlone/migrate/migration"
)

// SQLiteStore persists the ledger in a migration_records table. It works
// with any database/sql driver speaking SQLite; tests and the config opener
// use modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLiteStore on db and ensures the
// migration_records table exists. The store takes ownership of db; Close
// closes it.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migration_records (
		version           TEXT PRIMARY KEY,
		description       TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL,
		executed_at       TEXT NOT NULL,
		execution_time_ms REAL,
		error_message     TEXT NOT NULL DEFAULT '',
		checksum          TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return nil, fmt.Errorf("create migration_records table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]migration.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, description, status, executed_at, execution_time_ms, error_message, checksum
		 FROM migration_records ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query migration_records: %w", err)
	}
	defer rows.Close()

	var records []migration.Record
	for rows.Next() {
		var (
			rec        migration.Record
			executedAt string
			execMs     sql.NullFloat64
		)
		if err := rows.Scan(&rec.Version, &rec.Description, &rec.Status,
			&executedAt, &execMs, &rec.ErrorMessage, &rec.Checksum); err != nil {
			return nil, fmt.Errorf("scan migration record: %w", err)
		}
		rec.ExecutedAt, err = time.Parse(time.RFC3339Nano, executedAt)
		if err != nil {
			return nil, fmt.Errorf("parse executed_at for %s: %w", rec.Version, err)
		}
		if execMs.Valid {
			rec.ExecutionTimeMs = &execMs.Float64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, records []migration.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM migration_records`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear migration_records: %w", err)
	}
	for _, rec := range records {
		var execMs sql.NullFloat64
		if rec.ExecutionTimeMs != nil {
			execMs = sql.NullFloat64{Float64: *rec.ExecutionTimeMs, Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO migration_records
			 (version, description, status, executed_at, execution_time_ms, error_message, checksum)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.Version, rec.Description, string(rec.Status),
			rec.ExecutedAt.Format(time.RFC3339Nano), execMs, rec.ErrorMessage, rec.Checksum)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert record %s: %w", rec.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
