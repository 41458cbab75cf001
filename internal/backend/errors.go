package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedKind is returned by Open for an unregistered backend kind.
	ErrUnsupportedKind = errors.New("unsupported backend kind")
	// ErrNoTable is returned when a named table does not exist.
	ErrNoTable = errors.New("table not found")
)

// ExecError reports a failed query execution.
type ExecError struct {
	SQL string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
