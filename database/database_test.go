package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	id  int64
	err error
}

func (r result) LastInsertId() (int64, error) { return r.id, r.err }
func (r result) RowsAffected() (int64, error) { return 1, nil }

func TestKeyCursor_SingleRow(t *testing.T) {
	c, err := KeyCursor(result{id: 3})
	require.NoError(t, err)

	cols, err := c.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{GeneratedKeyColumn}, cols)

	require.True(t, c.Next())
	var id int
	require.NoError(t, c.Scan(&id))
	assert.Equal(t, 3, id)

	var s string
	require.NoError(t, c.Scan(&s))
	assert.Equal(t, "3", s)

	var n sql.NullInt64
	require.NoError(t, c.Scan(&n))
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, n)

	assert.False(t, c.Next())
	assert.NoError(t, c.Err())
	require.NoError(t, c.Close())
	assert.Error(t, c.Scan(&id))
}

func TestKeyCursor_ScanBeforeNext(t *testing.T) {
	c, err := KeyCursor(result{id: 1})
	require.NoError(t, err)
	var id int64
	assert.Error(t, c.Scan(&id))
}

func TestKeyCursor_Overflow(t *testing.T) {
	c, err := KeyCursor(result{id: 1 << 40})
	require.NoError(t, err)
	require.True(t, c.Next())
	var id int32
	assert.Error(t, c.Scan(&id))
}

func TestKeyCursor_LastInsertIdUnsupported(t *testing.T) {
	boom := errors.New("LastInsertId is not supported by this driver")
	_, err := KeyCursor(result{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var opErr OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "read generated keys", opErr.Op)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("query", nil))

	inner := Wrap("prepare", sql.ErrConnDone)
	assert.EqualError(t, inner, "failed to prepare: sql: connection is already closed")

	// The innermost step wins.
	outer := Wrap("query", inner)
	assert.Equal(t, inner, outer)
	assert.True(t, errors.Is(outer, sql.ErrConnDone))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(Wrap("select one", sql.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("nope")))
}

type staticRow struct {
	cols []string
	vals []any
}

func (r staticRow) Columns() ([]string, error) { return r.cols, nil }

func (r staticRow) Scan(dest ...any) error {
	for i, d := range dest {
		*(d.(*any)) = r.vals[i]
	}
	return nil
}

func TestScanMap(t *testing.T) {
	row := staticRow{
		cols: []string{"ID", "USERNAME"},
		vals: []any{int64(2), []byte("bobmarshal")},
	}
	m, err := ScanMap(row)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ID": int64(2), "USERNAME": "bobmarshal"}, m)
}

func TestOwnership(t *testing.T) {
	assert.Equal(t, "borrowed", Borrow(nil).Ownership().String())
	assert.Equal(t, "owned", Own(nil).Ownership().String())

	h, err := Borrow(nil).Acquire(t.Context())
	require.NoError(t, err)
	assert.False(t, h.Owned())
	assert.NoError(t, h.Close())
}
