package migration

import "context"

// Env is the execution context forwarded unchanged into every migration call.
// By convention it carries a handle to the system being migrated; the engine
// never reads or writes its contents.
type Env map[string]any

// Migration is implemented by integrators for each versioned change.
// Versions must be unique and sortable (typically timestamp-derived).
// Dependencies lists versions that must be completed before this migration
// may run.
type Migration interface {
	Version() string
	Description() string
	Dependencies() []string
	Up(ctx context.Context, env Env) error
	Down(ctx context.Context, env Env) error
}

// Validator is optionally implemented by migrations that want a pre-flight
// check before Up runs. A non-nil error marks the migration FAILED without
// calling Up. Migrations that do not implement Validator are always valid.
type Validator interface {
	Validate(ctx context.Context, env Env) error
}

// Def builds a Migration from plain values and functions, for integrators
// that do not want to declare a named type per migration.
type Def struct {
	Version      string
	Description  string
	Dependencies []string
	Up           func(ctx context.Context, env Env) error
	Down         func(ctx context.Context, env Env) error
	Validate     func(ctx context.Context, env Env) error
}

// Build returns the Migration described by the definition.
func (d Def) Build() Migration { return defMigration{d} }

type defMigration struct {
	def Def
}

func (m defMigration) Version() string        { return m.def.Version }
func (m defMigration) Description() string    { return m.def.Description }
func (m defMigration) Dependencies() []string { return m.def.Dependencies }

func (m defMigration) Up(ctx context.Context, env Env) error {
	if m.def.Up == nil {
		return nil
	}
	return m.def.Up(ctx, env)
}

func (m defMigration) Down(ctx context.Context, env Env) error {
	if m.def.Down == nil {
		return nil
	}
	return m.def.Down(ctx, env)
}

func (m defMigration) Validate(ctx context.Context, env Env) error {
	if m.def.Validate == nil {
		return nil
	}
	return m.def.Validate(ctx, env)
}
