package migration

import (
	"fmt"
	"sort"
)

// Registry is the in-memory catalogue of migration definitions, keyed by
// version. It enforces version uniqueness and nothing else; historical
// records are owned by the engine's ledger, not the registry.
type Registry struct {
	migrations map[string]Migration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{migrations: make(map[string]Migration)}
}

// Register stores a migration definition. Registering a version twice
// returns ErrDuplicateVersion.
func (r *Registry) Register(m Migration) error {
	v := m.Version()
	if v == "" {
		return fmt.Errorf("register migration: empty version")
	}
	if _, exists := r.migrations[v]; exists {
		return fmt.Errorf("register migration %q: %w", v, ErrDuplicateVersion)
	}
	r.migrations[v] = m
	return nil
}

// Unregister removes a migration definition. Unknown versions are a no-op.
// Historical records for the version are left in place.
func (r *Registry) Unregister(version string) {
	delete(r.migrations, version)
}

// Get returns the migration registered under version.
func (r *Registry) Get(version string) (Migration, bool) {
	m, ok := r.migrations[version]
	return m, ok
}

// Len returns the number of registered migrations.
func (r *Registry) Len() int { return len(r.migrations) }

// Versions returns all registered versions in ascending order.
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.migrations))
	for v := range r.migrations {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}
