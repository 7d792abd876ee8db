package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// call is what one statement execution saw.
type call struct {
	query string
	args  []driver.Value
}

// reply is what the fake database answers for an execution.
type reply struct {
	cols     []string
	rows     [][]driver.Value
	affected int64
	lastID   int64
	err      error
}

type handler func(c call) reply

// fakeDB is an in-memory database/sql driver that records every prepare,
// execution and close.
type fakeDB struct {
	mu         sync.Mutex
	h          handler
	prepareErr error
	calls      []call
	prepares   int
	stmtCloses int
	rowsCloses int
}

func (d *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: d}, nil }
func (d *fakeDB) Driver() driver.Driver                        { return fakeDriver{} }

func (d *fakeDB) counts() (prepares, stmtCloses, rowsCloses int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prepares, d.stmtCloses, d.rowsCloses
}

func (d *fakeDB) lastCall() call {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return call{}
	}
	return d.calls[len(d.calls)-1]
}

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("fakeDriver.Open should not be called; use sql.OpenDB with a connector")
}

type fakeConn struct {
	db *fakeDB
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if c.db.prepareErr != nil {
		return nil, c.db.prepareErr
	}
	c.db.prepares++
	return &fakeStmt{db: c.db, query: query}, nil
}

func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions are not supported") }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error {
	s.db.mu.Lock()
	s.db.stmtCloses++
	s.db.mu.Unlock()
	return nil
}

func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) run(args []driver.Value) reply {
	c := call{query: s.query, args: append([]driver.Value(nil), args...)}
	s.db.mu.Lock()
	s.db.calls = append(s.db.calls, c)
	h := s.db.h
	s.db.mu.Unlock()
	if h == nil {
		return reply{}
	}
	return h(c)
}

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	r := s.run(args)
	if r.err != nil {
		return nil, r.err
	}
	return fakeResult{affected: r.affected, lastID: r.lastID}, nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	r := s.run(args)
	if r.err != nil {
		return nil, r.err
	}
	return &fakeRows{db: s.db, cols: r.cols, data: r.rows}, nil
}

type fakeResult struct {
	affected int64
	lastID   int64
}

func (r fakeResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

type fakeRows struct {
	db   *fakeDB
	cols []string
	data [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return append([]string(nil), r.cols...) }

func (r *fakeRows) Close() error {
	r.db.mu.Lock()
	r.db.rowsCloses++
	r.db.mu.Unlock()
	return nil
}

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.i])
	r.i++
	return nil
}

func newFakeDB(t *testing.T, h handler) (*fakeDB, *sql.DB) {
	t.Helper()
	fdb := &fakeDB{h: h}
	db := sql.OpenDB(fdb)
	t.Cleanup(func() { _ = db.Close() })
	return fdb, db
}

// users answers every query with the same two-row table.
func users(call) reply {
	return reply{
		cols: []string{"ID", "USERNAME"},
		rows: [][]driver.Value{
			{int64(1), "josephmarlon"},
			{int64(2), "bobmarshal"},
		},
	}
}
