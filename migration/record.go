package migration

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of one migration's execution record.
// Pending is implicit: a registered migration with no record is pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// Record is the durable ledger entry for one migration that has started
// execution at least once. Description is a snapshot taken at execution
// time, so history survives unregistration.
type Record struct {
	Version         string    `json:"version"`
	Description     string    `json:"description"`
	Status          Status    `json:"status"`
	ExecutedAt      time.Time `json:"executed_at"`
	ExecutionTimeMs *float64  `json:"execution_time_ms"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
}

// RecordStore persists the migration ledger. Save is a synchronous full
// rewrite of every record; the engine calls it after each state transition
// and treats a Save error as fatal to the run.
type RecordStore interface {
	// Load returns all persisted records. A missing ledger is an empty
	// slice, not an error.
	Load(ctx context.Context) ([]Record, error)
	// Save atomically replaces the persisted ledger with records.
	Save(ctx context.Context, records []Record) error
}

// checksum computes a stable hash over a migration's identity, used to
// detect drift between a historical record and the current definition.
func checksum(m Migration) string {
	payload := m.Version() + "\x00" + m.Description() + "\x00" + strings.Join(m.Dependencies(), ",")
	h := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%x", h[:8])
}
