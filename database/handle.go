package database

import (
	"context"
	"database/sql"
)

// Ownership records who is responsible for closing the connection an
// execution runs on.
type Ownership int

const (
	// Borrowed connections belong to the caller and are never closed.
	Borrowed Ownership = iota
	// Owned connections were acquired for a single execution and are closed
	// when it terminates.
	Owned
)

func (o Ownership) String() string {
	switch o {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

// Acquirer obtains the connection one execution prepares its statement on.
type Acquirer interface {
	Acquire(ctx context.Context) (*Handle, error)
	Ownership() Ownership
}

// Handle is a connection checked out for one execution.
type Handle struct {
	Preparer
	conn *sql.Conn
}

// Close returns an owned connection to its pool. It is a no-op for borrowed
// connections.
func (h *Handle) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// Owned reports whether closing the handle releases a connection.
func (h *Handle) Owned() bool {
	return h != nil && h.conn != nil
}

type borrowed struct {
	p Preparer
}

// Borrow wraps a caller-supplied connection. Executions prepare on it and
// never close it.
func Borrow(p Preparer) Acquirer {
	return borrowed{p: p}
}

func (b borrowed) Acquire(context.Context) (*Handle, error) {
	return &Handle{Preparer: b.p}, nil
}

func (borrowed) Ownership() Ownership { return Borrowed }

type owned struct {
	p ConnProvider
}

// Own acquires a fresh connection from p for every execution and closes it
// when the execution terminates.
func Own(p ConnProvider) Acquirer {
	return owned{p: p}
}

func (o owned) Acquire(ctx context.Context) (*Handle, error) {
	conn, err := o.p.Conn(ctx)
	if err != nil {
		return nil, Wrap("acquire connection", err)
	}
	return &Handle{Preparer: conn, conn: conn}, nil
}

func (owned) Ownership() Ownership { return Owned }
