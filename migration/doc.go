// Package migration provides a storage-agnostic migration engine: a registry
// of versioned migrations, dependency resolution with cycle detection, a
// sequential execution engine with durable per-migration records, and
// rollback. The engine never inspects the system being migrated; migration
// bodies receive an opaque Env supplied by the caller.
package migration
