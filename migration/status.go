package migration

import "sort"

// StatusReport is a point-in-time projection over the registry and ledger.
type StatusReport struct {
	// Registered is the number of migrations currently registered.
	Registered int `json:"registered"`
	// Counts holds the number of migrations per status. Pending counts
	// registered migrations whose record is absent or still pending.
	Counts map[Status]int `json:"counts"`
	// Pending lists registered versions that are not completed, ascending.
	Pending []string `json:"pending"`
	// LastApplied is the version with the most recent record transition.
	LastApplied string `json:"last_applied,omitempty"`
	// Drifted lists versions whose record checksum no longer matches the
	// registered definition.
	Drifted []string `json:"drifted,omitempty"`
}

// Status reports counts per state, the pending set, the most recently
// executed version and any checksum drift. Safe to call at any time,
// including while a run is in flight: it takes only the short-held state
// lock, never the run lock, so an in-progress migration shows up as
// running.
func (e *Engine) Status() StatusReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	report := StatusReport{
		Registered: e.registry.Len(),
		Counts:     make(map[Status]int),
	}

	var lastAt int64 = -1
	for _, rec := range e.records {
		report.Counts[rec.Status]++
		if at := rec.ExecutedAt.UnixNano(); at > lastAt {
			lastAt = at
			report.LastApplied = rec.Version
		}
	}

	for _, v := range e.registry.Versions() {
		rec, ok := e.records[v]
		if !ok {
			report.Counts[StatusPending]++
			report.Pending = append(report.Pending, v)
			continue
		}
		if rec.Status != StatusCompleted {
			report.Pending = append(report.Pending, v)
		}
		m, _ := e.registry.Get(v)
		if rec.Checksum != "" && rec.Checksum != checksum(m) {
			report.Drifted = append(report.Drifted, v)
		}
	}
	return report
}

// HistoryEntry is a ledger record joined with the current registry view.
type HistoryEntry struct {
	Record
	// RegisteredDescription is the description of the currently registered
	// definition, empty when the migration has been unregistered. The
	// embedded Record keeps its execution-time snapshot either way.
	RegisteredDescription string `json:"registered_description,omitempty"`
	// Drifted is true when the record checksum no longer matches the
	// registered definition.
	Drifted bool `json:"drifted,omitempty"`
}

// History returns all ledger records, most recent transition first. Like
// Status it is served mid-run from the state lock alone.
func (e *Engine) History() []HistoryEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := make([]HistoryEntry, 0, len(e.records))
	for _, rec := range e.records {
		entry := HistoryEntry{Record: rec}
		if m, ok := e.registry.Get(rec.Version); ok {
			entry.RegisteredDescription = m.Description()
			entry.Drifted = rec.Checksum != "" && rec.Checksum != checksum(m)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ExecutedAt.Equal(entries[j].ExecutedAt) {
			return entries[i].ExecutedAt.After(entries[j].ExecutedAt)
		}
		return entries[i].Version > entries[j].Version
	})
	return entries
}
