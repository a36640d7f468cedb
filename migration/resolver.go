package migration

// Traversal states for cycle detection during resolution.
const (
	unvisited = iota
	visiting
	visited
)

// Resolve computes a linear execution order consistent with declared
// dependencies. With a target version it covers the target plus the
// transitive closure of its dependencies; with an empty target it covers
// the full registry. Every dependency precedes its dependents in the
// returned order. Resolution is pure: it reads the registry and nothing
// else.
//
// A dependency on an unregistered version, or a dependency cycle, returns
// a *DependencyError.
func (r *Registry) Resolve(target string) ([]string, error) {
	state := make(map[string]int, len(r.migrations))
	order := make([]string, 0, len(r.migrations))

	var visit func(version, dependent string) error
	visit = func(version, dependent string) error {
		switch state[version] {
		case visiting:
			return &DependencyError{Version: version, Cycle: true}
		case visited:
			return nil
		}
		m, ok := r.migrations[version]
		if !ok {
			return &DependencyError{Version: version, Dependent: dependent}
		}
		state[version] = visiting
		for _, dep := range m.Dependencies() {
			if err := visit(dep, version); err != nil {
				return err
			}
		}
		state[version] = visited
		order = append(order, version)
		return nil
	}

	if target != "" {
		if err := visit(target, ""); err != nil {
			return nil, err
		}
		return order, nil
	}

	// Full-registry resolution walks versions in ascending order so ties
	// between independent migrations resolve deterministically.
	for _, v := range r.Versions() {
		if err := visit(v, ""); err != nil {
			return nil, err
		}
	}
	return order, nil
}
