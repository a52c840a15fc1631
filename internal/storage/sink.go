package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a Sink.
//
// When to use:
//   - Use Config when constructing a Sink via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string

	// BatchSize bounds the number of rows per INSERT statement. Backends
	// may clamp it further (SQL Server has a hard parameter limit).
	// Zero means the backend default.
	BatchSize int
}

// Sink is the backend-agnostic interface the star-schema engine loads into.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the engine needs: whole-table replacement plus idempotent
// constraint/index declaration. Each backend implements these semantics in
// its own idiomatic way (Postgres transactional DDL, SQLite unique-index
// primary keys, etc).
type Sink interface {
	// Close releases backend resources (connections, pools).
	// Treat as "call once" at the end of a run.
	Close()

	// Ping verifies the sink is reachable. The engine calls it before the
	// first write so configuration errors surface before any table is
	// touched.
	Ping(ctx context.Context) error

	// ReplaceTable atomically replaces a table with the given rows.
	// The old table stays visible until the new contents fully commit; a
	// failed replace leaves either the old table or no table, never a
	// half-written one. Rows must align with spec.Columns.
	ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) error

	// EnsurePrimaryKey declares a primary key on column, tolerating an
	// already-declared key (create-if-not-declared semantics).
	EnsurePrimaryKey(ctx context.Context, table string, column string) error

	// EnsureUniqueIndex declares a named unique index, tolerating one that
	// already exists. An integrity break (duplicate values) surfaces as a
	// *ConstraintError.
	EnsureUniqueIndex(ctx context.Context, name string, table string, columns []string) error

	// EnsureIndex declares a named non-unique index, tolerating one that
	// already exists.
	EnsureIndex(ctx context.Context, name string, table string, columns []string) error
}

// ---- factories (mirrors the per-backend registration pattern) ----

type factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a sink backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Sink using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
func New(ctx context.Context, cfg Config) (Sink, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
