package database

import (
	"database/sql"
	"fmt"
	"strconv"
)

// GeneratedKeyColumn names the single column of a cursor built from
// sql.Result.LastInsertId.
const GeneratedKeyColumn = "generated_key"

// KeyCursor exposes the key generated by an INSERT as a one-row, one-column
// cursor, so row mappers read generated keys the same way they read query
// results.
func KeyCursor(res sql.Result) (Cursor, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return nil, Wrap("read generated keys", err)
	}
	return &keyCursor{id: id}, nil
}

type keyCursor struct {
	id     int64
	pos    int
	closed bool
}

func (c *keyCursor) Columns() ([]string, error) {
	if c.closed {
		return nil, errCursorClosed
	}
	return []string{GeneratedKeyColumn}, nil
}

func (c *keyCursor) Next() bool {
	if c.closed || c.pos > 0 {
		return false
	}
	c.pos++
	return true
}

func (c *keyCursor) Scan(dest ...any) error {
	if c.closed {
		return errCursorClosed
	}
	if c.pos != 1 {
		return fmt.Errorf("sqlflow: Scan called without calling Next")
	}
	if len(dest) != 1 {
		return fmt.Errorf("sqlflow: expected 1 destination argument in Scan, not %d", len(dest))
	}
	return assignKey(dest[0], c.id)
}

func (c *keyCursor) Err() error { return nil }

func (c *keyCursor) Close() error {
	c.closed = true
	return nil
}

var errCursorClosed = fmt.Errorf("sqlflow: cursor is closed")

func assignKey(dest any, id int64) error {
	switch d := dest.(type) {
	case *int64:
		*d = id
	case *int:
		*d = int(id)
	case *int32:
		if int64(int32(id)) != id {
			return fmt.Errorf("sqlflow: generated key %d overflows int32", id)
		}
		*d = int32(id)
	case *uint64:
		if id < 0 {
			return fmt.Errorf("sqlflow: generated key %d is negative", id)
		}
		*d = uint64(id)
	case *float64:
		*d = float64(id)
	case *string:
		*d = strconv.FormatInt(id, 10)
	case *any:
		*d = id
	case sql.Scanner:
		return d.Scan(id)
	default:
		return fmt.Errorf("sqlflow: unsupported Scan destination %T for generated key", dest)
	}
	return nil
}
