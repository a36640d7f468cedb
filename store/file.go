package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoCodeAlone/migrate/migration"
)

// FileStore persists the ledger as a JSON array in a single file. Save
// writes to a temporary file in the same directory and renames it over the
// ledger, so a crash never leaves a partially written ledger behind.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path, creating parent directories as
// needed. The ledger file itself is created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileStore{path: abs}, nil
}

// Path returns the absolute ledger path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]migration.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}
	var records []migration.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) Save(_ context.Context, records []migration.Record) error {
	if records == nil {
		records = []migration.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
