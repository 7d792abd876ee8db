package engine

import (
	"context"

	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/stream"
)

// binder gives every operation the same chainable binding methods, each
// returning the operation itself.
type binder[O any] struct {
	b    *Builder
	self O
}

// Parameter binds v to the next positional slot.
func (p binder[O]) Parameter(v any) O {
	p.b.Parameter(v)
	return p.self
}

// Parameters binds vs[i] to slot i.
func (p binder[O]) Parameters(vs ...any) O {
	p.b.Parameters(vs...)
	return p.self
}

// Named binds v to every occurrence of :name.
func (p binder[O]) Named(name string, v any) O {
	p.b.Named(name, v)
	return p.self
}

// NamedParameters binds each name and value pair.
func (p binder[O]) NamedParameters(args ...NamedArg) O {
	p.b.NamedParameters(args...)
	return p.self
}

// Builder exposes the underlying statement builder.
func (p binder[O]) Builder() *Builder {
	return p.b
}

// RowSource is an operation that produces rows.
type RowSource interface {
	Rows() stream.Opener
	Options() []stream.Option
}

// Many returns a lazy stream of every row of src, mapped by mapper.
func Many[T any](src RowSource, mapper stream.Mapper[T]) *stream.Stream[T] {
	return stream.New(src.Rows(), mapper, src.Options()...)
}

// One returns a lazy future of the single row of src. It fails with
// stream.ErrNoRows or stream.ErrTooManyRows unless exactly one row exists.
func One[T any](src RowSource, mapper stream.Mapper[T]) *stream.Future[T] {
	return Many(src, mapper).Single()
}

// SelectOperation runs a query and streams its rows.
type SelectOperation struct {
	binder[*SelectOperation]
}

// Rows returns the opener that prepares, binds and runs the query.
func (o *SelectOperation) Rows() stream.Opener {
	b := o.b.snapshot()
	return func(ctx context.Context) (*stream.Execution, error) {
		p, err := b.Build(ctx)
		if err != nil {
			return nil, err
		}
		rows, err := p.Stmt.QueryContext(ctx, p.Args...)
		if err != nil {
			p.discard(ctx, b.op)
			return nil, database.Wrap("execute query", err)
		}
		return &stream.Execution{Cursor: rows, Closers: p.Closers()}, nil
	}
}

func (o *SelectOperation) Options() []stream.Option {
	return o.b.env.streamOptions(o.b.op, o.b.tpl.SQL())
}

// Maps streams every row as a column name to value map.
func (o *SelectOperation) Maps() *stream.Stream[map[string]any] {
	return Many[map[string]any](o, database.ScanMap)
}

// InsertOperation runs an insert and streams the keys it generated. On
// dialects with INSERT ... RETURNING the statement is queried and its rows
// are the keys, with RETURNING * appended when the statement has no
// RETURNING clause; otherwise the key is read from sql.Result.LastInsertId
// and exposed as a single row with one column.
type InsertOperation struct {
	binder[*InsertOperation]
}

func (o *InsertOperation) Rows() stream.Opener {
	b := o.b.snapshot()
	returning := b.env.cfg.Dialect.Returning()
	return func(ctx context.Context) (*stream.Execution, error) {
		p, err := b.Build(ctx)
		if err != nil {
			return nil, err
		}
		if returning {
			rows, err := p.Stmt.QueryContext(ctx, p.Args...)
			if err != nil {
				p.discard(ctx, b.op)
				return nil, database.Wrap("execute insert", err)
			}
			return &stream.Execution{Cursor: rows, Closers: p.Closers()}, nil
		}
		res, err := p.Stmt.ExecContext(ctx, p.Args...)
		if err != nil {
			p.discard(ctx, b.op)
			return nil, database.Wrap("execute insert", err)
		}
		keys, err := database.KeyCursor(res)
		if err != nil {
			p.discard(ctx, b.op)
			return nil, err
		}
		return &stream.Execution{Cursor: keys, Closers: p.Closers()}, nil
	}
}

func (o *InsertOperation) Options() []stream.Option {
	return o.b.env.streamOptions(o.b.op, o.b.tpl.SQL())
}

// Keys streams the generated keys as int64, read from the first column of
// each key row.
func (o *InsertOperation) Keys() *stream.Stream[int64] {
	return Many[int64](o, scanFirstKey)
}

func scanFirstKey(r database.Row) (int64, error) {
	cols, err := r.Columns()
	if err != nil {
		return 0, err
	}
	var id int64
	dest := make([]any, max(len(cols), 1))
	dest[0] = &id
	for i := 1; i < len(dest); i++ {
		dest[i] = new(any)
	}
	err = r.Scan(dest...)
	return id, err
}

// UpdateOperation runs an update or delete.
type UpdateOperation struct {
	binder[*UpdateOperation]
}

// Run returns a lazy future of the number of rows affected.
func (o *UpdateOperation) Run() *stream.Future[int64] {
	b := o.b.snapshot()
	return stream.NewFuture(func(ctx context.Context) (int64, error) {
		p, err := b.Build(ctx)
		if err != nil {
			return 0, err
		}
		defer p.discard(ctx, b.op)
		res, err := p.Stmt.ExecContext(ctx, p.Args...)
		if err != nil {
			return 0, database.Wrap("execute statement", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, database.Wrap("read rows affected", err)
		}
		return n, nil
	}, b.env.streamOptions(b.op, b.tpl.SQL())...)
}

var (
	_ RowSource = (*SelectOperation)(nil)
	_ RowSource = (*InsertOperation)(nil)
)
