// Package store provides durable backends for the migration ledger: an
// in-memory store, a JSON file, SQLite, PostgreSQL and Redis. Every backend
// implements migration.RecordStore with full-rewrite Save semantics, so the
// persisted ledger is always a consistent snapshot of the engine's view.
package store

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/migrate/migration"
)

// RecordStore combines the engine's ledger port with resource cleanup.
// Close releases the backend's underlying handle; for handle-less backends
// it is a no-op.
type RecordStore interface {
	migration.RecordStore
	Close() error
}

// MemoryStore keeps the ledger in process memory. Useful for tests and for
// ephemeral runs where durability is not required.
type MemoryStore struct {
	mu      sync.Mutex
	records []migration.Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]migration.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]migration.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, records []migration.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]migration.Record, len(records))
	copy(s.records, records)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
