// Package database describes the slice of database/sql that sqlflow drives:
// something to prepare statements on, something to hand out connections, and
// the cursor a query yields.
package database

import (
	"context"
	"database/sql"
)

// Preparer prepares statements on a connection the caller keeps ownership
// of. *sql.Conn, *sql.Tx and *sql.DB implement it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ConnProvider hands out dedicated connections. *sql.DB implements it.
type ConnProvider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// Row is the current row of a Cursor, as seen by a row mapper.
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

// Cursor iterates the rows produced by one execution. *sql.Rows implements it.
type Cursor interface {
	Row
	Next() bool
	Err() error
	Close() error
}

// Statement is a prepared statement. *sql.Stmt implements it.
type Statement interface {
	QueryContext(ctx context.Context, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, args ...any) (sql.Result, error)
	Close() error
}

var (
	_ Cursor       = (*sql.Rows)(nil)
	_ Statement    = (*sql.Stmt)(nil)
	_ Preparer     = (*sql.Conn)(nil)
	_ Preparer     = (*sql.Tx)(nil)
	_ ConnProvider = (*sql.DB)(nil)
)
