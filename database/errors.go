package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// OpError wraps a driver error with the step that was being performed when
// it occurred (acquire, prepare, query, exec, advance, ...).
type OpError struct {
	Op  string
	Err error
}

func (e OpError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Err)
}

// Unwrap returns the inner error to allow inspection of error chains.
func (e OpError) Unwrap() error {
	return e.Err
}

// Wrap returns err wrapped in an OpError for op, or nil if err is nil. Errors
// that already carry an OpError are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr OpError
	if errors.As(err, &opErr) {
		return err
	}
	return OpError{Op: op, Err: err}
}

// IsNoRows reports whether err wraps sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
