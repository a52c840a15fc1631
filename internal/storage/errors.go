package storage

import "fmt"

// UnavailableError means the backing store was unreachable or rejected a
// write at the connection level. The run aborts; nothing was committed by
// the failing operation.
//
// Backends wrap connect/ping/exec transport failures in this type so the
// engine and callers can classify them with errors.As.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage: sink unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ConstraintError means declaring a primary key or unique index found data
// that violates it (e.g. duplicate natural keys in the fact table). This is
// an upstream invariant break and is always fatal.
type ConstraintError struct {
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("storage: constraint violation on table %s: %v", e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }
