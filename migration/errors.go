package migration

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine operations.
var (
	ErrDuplicateVersion       = errors.New("duplicate migration version")
	ErrDownTargetRequired     = errors.New("rollback target version required")
	ErrDownTargetNotCompleted = errors.New("rollback target was never completed")
)

// DependencyError reports an unresolvable dependency graph: either a version
// that is not registered, or a cycle. It is returned before any migration
// runs and before any record transition.
type DependencyError struct {
	// Version is the offending version.
	Version string
	// Dependent is the migration that declared Version as a dependency.
	// Empty when Version itself was the requested target.
	Dependent string
	// Cycle is true when Version was reached twice on one traversal path.
	Cycle bool
}

func (e *DependencyError) Error() string {
	switch {
	case e.Cycle:
		return fmt.Sprintf("dependency cycle detected at migration %q", e.Version)
	case e.Dependent != "":
		return fmt.Sprintf("migration %q depends on unregistered version %q", e.Dependent, e.Version)
	default:
		return fmt.Sprintf("migration %q is not registered", e.Version)
	}
}
