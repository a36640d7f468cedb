package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RunStatus reports the overall outcome of an Up or Down run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Result is the envelope returned by Up and Down. Mid-run validation and
// execution failures are reported here with Status RunError rather than as
// Go errors, so callers can branch on the envelope; the failed migration's
// record carries the error message. Executed lists versions that finished
// (completed or rolled back) during this run, in execution order.
type Result struct {
	Status   RunStatus `json:"status"`
	Executed []string  `json:"executed_migrations"`
	Message  string    `json:"message"`
}

// Engine orchestrates sequential migration execution. It owns the registry
// and the in-memory view of the ledger, persisting through its RecordStore
// after every state transition. Up, Down and Reset serialize on a run lock;
// registry and ledger state are guarded separately and only per transition,
// so Status and History are served at any time, including mid-run.
// Coordinating multiple engine processes against one target is the
// integrator's responsibility.
type Engine struct {
	// runMu serializes the mutating entry points Up, Down and Reset.
	runMu sync.Mutex
	// mu guards registry and records. Held only for in-memory reads and
	// updates, never across a migration body or a ledger write.
	mu       sync.RWMutex
	registry *Registry
	store    RecordStore
	records  map[string]Record
	logger   *slog.Logger

	// rollbackAll makes Down fall back to rolling back every completed
	// migration when the target has no completed record.
	rollbackAll bool

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMissingTargetRollback makes Down roll back every completed migration
// when the target version has no completed record, instead of failing with
// ErrDownTargetNotCompleted.
func WithMissingTargetRollback() Option {
	return func(e *Engine) { e.rollbackAll = true }
}

// New creates an Engine backed by store and loads the persisted ledger.
func New(ctx context.Context, store RecordStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		registry: NewRegistry(),
		store:    store,
		records:  make(map[string]Record),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load migration ledger: %w", err)
	}
	for _, rec := range records {
		e.records[rec.Version] = rec
	}
	return e, nil
}

// Register adds a migration definition to the engine's registry.
func (e *Engine) Register(m Migration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Register(m)
}

// Unregister removes a migration definition. Its historical record, if
// any, is kept; History falls back to the record's description snapshot.
func (e *Engine) Unregister(version string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.registry.Get(version); !ok {
		e.logger.Debug("unregister unknown migration", "version", version)
		return
	}
	e.registry.Unregister(version)
}

// Resolve returns the execution order for target without running anything.
// An empty target resolves the full registry.
func (e *Engine) Resolve(target string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Resolve(target)
}

// Up applies pending migrations in dependency order. With an empty target
// it applies everything registered; otherwise the target and its transitive
// dependencies. Versions whose record is already completed are skipped.
// The run halts at the first validation or execution failure: that
// migration's record becomes failed and later migrations are left pending.
//
// Dependency errors and ledger persistence failures are returned as Go
// errors; per-migration failures are reported in the Result.
func (e *Engine) Up(ctx context.Context, target string, env Env) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.RLock()
	order, err := e.registry.Resolve(target)
	if err != nil {
		e.mu.RUnlock()
		return nil, err
	}
	pending := make([]string, 0, len(order))
	for _, v := range order {
		if rec, ok := e.records[v]; ok && rec.Status == StatusCompleted {
			continue
		}
		pending = append(pending, v)
	}
	e.mu.RUnlock()

	executed := make([]string, 0, len(pending))
	for _, v := range pending {
		m, ok := e.getMigration(v)
		if !ok {
			// Only the run lock is held across migration bodies, so a
			// definition can be unregistered between resolution and this
			// step.
			return nil, &DependencyError{Version: v}
		}

		if err := e.setRecord(ctx, Record{
			Version:     v,
			Description: m.Description(),
			Status:      StatusRunning,
			ExecutedAt:  e.now(),
			Checksum:    checksum(m),
		}); err != nil {
			return nil, err
		}

		start := e.now()
		if verr := e.validateOne(ctx, m, env); verr != nil {
			if err := e.failRecord(ctx, v, verr); err != nil {
				return nil, err
			}
			e.logger.Error("migration validation failed", "version", v, "error", verr)
			return &Result{
				Status:   RunError,
				Executed: executed,
				Message:  fmt.Sprintf("validation failed for %s: %v", v, verr),
			}, nil
		}

		e.logger.Info("applying migration", "version", v, "description", m.Description())
		if uerr := m.Up(ctx, env); uerr != nil {
			if err := e.failRecord(ctx, v, uerr); err != nil {
				return nil, err
			}
			e.logger.Error("migration failed", "version", v, "error", uerr)
			return &Result{
				Status:   RunError,
				Executed: executed,
				Message:  fmt.Sprintf("migration %s failed: %v", v, uerr),
			}, nil
		}
		elapsed := durationMs(e.now().Sub(start))

		rec, _ := e.getRecord(v)
		rec.Status = StatusCompleted
		rec.ExecutedAt = e.now()
		rec.ExecutionTimeMs = &elapsed
		rec.ErrorMessage = ""
		if err := e.setRecord(ctx, rec); err != nil {
			return nil, err
		}

		executed = append(executed, v)
		e.logger.Info("migration completed", "version", v, "duration_ms", elapsed)
	}

	return &Result{
		Status:   RunSuccess,
		Executed: executed,
		Message:  fmt.Sprintf("applied %d migration(s)", len(executed)),
	}, nil
}

// Down rolls back completed migrations, most recent first, until target is
// reached. The target itself is not rolled back. A target with no completed
// record fails with ErrDownTargetNotCompleted unless the engine was built
// with WithMissingTargetRollback, in which case every completed migration
// is rolled back.
func (e *Engine) Down(ctx context.Context, target string, env Env) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if target == "" {
		return nil, ErrDownTargetRequired
	}

	completed := e.completedDesc()
	targetCompleted := false
	for _, rec := range completed {
		if rec.Version == target {
			targetCompleted = true
			break
		}
	}
	if !targetCompleted && !e.rollbackAll {
		return nil, fmt.Errorf("migration %q: %w", target, ErrDownTargetNotCompleted)
	}

	executed := make([]string, 0, len(completed))
	for _, rec := range completed {
		if rec.Version == target {
			break
		}
		v := rec.Version

		m, ok := e.getMigration(v)
		if !ok {
			// The record survived unregistration, so there is no Down body
			// left to run. The record stays completed.
			e.logger.Error("rollback candidate has no registered definition", "version", v)
			return &Result{
				Status:   RunError,
				Executed: executed,
				Message:  fmt.Sprintf("cannot roll back %s: no registered definition", v),
			}, nil
		}

		rec.Status = StatusRunning
		rec.ExecutedAt = e.now()
		if err := e.setRecord(ctx, rec); err != nil {
			return nil, err
		}

		e.logger.Info("rolling back migration", "version", v)
		start := e.now()
		if derr := m.Down(ctx, env); derr != nil {
			if err := e.failRecord(ctx, v, derr); err != nil {
				return nil, err
			}
			e.logger.Error("rollback failed", "version", v, "error", derr)
			return &Result{
				Status:   RunError,
				Executed: executed,
				Message:  fmt.Sprintf("rollback of %s failed: %v", v, derr),
			}, nil
		}
		elapsed := durationMs(e.now().Sub(start))

		rec, _ = e.getRecord(v)
		rec.Status = StatusRolledBack
		rec.ExecutedAt = e.now()
		rec.ExecutionTimeMs = &elapsed
		rec.ErrorMessage = ""
		if err := e.setRecord(ctx, rec); err != nil {
			return nil, err
		}

		executed = append(executed, v)
		e.logger.Info("migration rolled back", "version", v)
	}

	return &Result{
		Status:   RunSuccess,
		Executed: executed,
		Message:  fmt.Sprintf("rolled back %d migration(s)", len(executed)),
	}, nil
}

// ValidationResult is the outcome of one migration's validate check.
type ValidationResult struct {
	Version string `json:"version"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

// ValidationReport aggregates ValidateAll outcomes.
type ValidationReport struct {
	AllValid bool               `json:"all_valid"`
	Results  []ValidationResult `json:"results"`
}

// ValidateAll runs every registered migration's validate check
// independently, with no ordering requirement and no record transitions.
func (e *Engine) ValidateAll(ctx context.Context, env Env) ValidationReport {
	e.mu.RLock()
	migrations := make([]Migration, 0, e.registry.Len())
	for _, v := range e.registry.Versions() {
		m, _ := e.registry.Get(v)
		migrations = append(migrations, m)
	}
	e.mu.RUnlock()

	report := ValidationReport{AllValid: true}
	for _, m := range migrations {
		res := ValidationResult{Version: m.Version(), Valid: true}
		if err := e.validateOne(ctx, m, env); err != nil {
			res.Valid = false
			res.Error = err.Error()
			report.AllValid = false
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// Reset wipes the entire ledger and persists the empty state. Destructive;
// registered definitions are untouched.
func (e *Engine) Reset(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	e.records = make(map[string]Record)
	records := e.snapshotLocked()
	e.mu.Unlock()

	if err := e.persist(ctx, records); err != nil {
		return err
	}
	e.logger.Warn("migration ledger reset")
	return nil
}

// Pending returns registered versions with no completed record, in
// resolved execution order.
func (e *Engine) Pending() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, err := e.registry.Resolve("")
	if err != nil {
		return nil, err
	}
	pending := make([]string, 0, len(order))
	for _, v := range order {
		if rec, ok := e.records[v]; ok && rec.Status == StatusCompleted {
			continue
		}
		pending = append(pending, v)
	}
	return pending, nil
}

func (e *Engine) validateOne(ctx context.Context, m Migration, env Env) error {
	v, ok := m.(Validator)
	if !ok {
		return nil
	}
	return v.Validate(ctx, env)
}

func (e *Engine) getMigration(version string) (Migration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry.Get(version)
}

func (e *Engine) getRecord(version string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.records[version]
	return rec, ok
}

// failRecord marks version failed with the causing error and persists.
func (e *Engine) failRecord(ctx context.Context, version string, cause error) error {
	rec, _ := e.getRecord(version)
	rec.Version = version
	rec.Status = StatusFailed
	rec.ExecutedAt = e.now()
	rec.ErrorMessage = cause.Error()
	return e.setRecord(ctx, rec)
}

// setRecord updates the in-memory view under the state lock, then
// synchronously rewrites the ledger. The state lock is released before the
// write so readers are never blocked on store I/O; runs are already
// serialized by runMu, so writes cannot interleave. A persistence failure
// is fatal: the caller must abort the run.
func (e *Engine) setRecord(ctx context.Context, rec Record) error {
	e.mu.Lock()
	e.records[rec.Version] = rec
	records := e.snapshotLocked()
	e.mu.Unlock()
	return e.persist(ctx, records)
}

func (e *Engine) persist(ctx context.Context, records []Record) error {
	if err := e.store.Save(ctx, records); err != nil {
		return fmt.Errorf("persist migration ledger: %w", err)
	}
	return nil
}

// snapshotLocked copies the records sorted by version. Callers must hold
// e.mu.
func (e *Engine) snapshotLocked() []Record {
	records := make([]Record, 0, len(e.records))
	for _, rec := range e.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version < records[j].Version
	})
	return records
}

// completedDesc returns completed records ordered by ExecutedAt descending,
// breaking ties by version descending.
func (e *Engine) completedDesc() []Record {
	e.mu.RLock()
	completed := make([]Record, 0, len(e.records))
	for _, rec := range e.records {
		if rec.Status == StatusCompleted {
			completed = append(completed, rec)
		}
	}
	e.mu.RUnlock()

	sort.Slice(completed, func(i, j int) bool {
		if !completed[i].ExecutedAt.Equal(completed[j].ExecutedAt) {
			return completed[i].ExecutedAt.After(completed[j].ExecutedAt)
		}
		return completed[i].Version > completed[j].Version
	})
	return completed
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
