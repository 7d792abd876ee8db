// Package sqlflow runs SQL statements lazily and streams their results.
//
// A Source is bound to either a connection the caller owns (Conn) or a pool
// the engine borrows a connection from for every execution (Pool, Open).
// Statements are written with :named or ? placeholders:
//
//	src := sqlflow.Pool(db)
//	users := sqlflow.Many(
//		src.Select("SELECT ID, USERNAME FROM USER WHERE USERNAME LIKE :pattern").
//			Named("pattern", "%bob%"),
//		scanUser,
//	)
//	for u, err := range users.Iter(ctx) { ... }
//
// Nothing touches the database until a stream or future is consumed, and
// every consumption runs the statement again.
package sqlflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Konsultn-Engineering/sqlflow/cache"
	"github.com/Konsultn-Engineering/sqlflow/connector"
	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/dialect"
	"github.com/Konsultn-Engineering/sqlflow/engine"
	"github.com/Konsultn-Engineering/sqlflow/stream"
)

// Source issues statements against one database.
type Source struct {
	engine *engine.Engine
	conn   connector.Connection
}

type options struct {
	dialect   dialect.Dialect
	logger    *slog.Logger
	observer  stream.Observer
	templates *cache.TemplateCache
}

// Option configures a Source.
type Option func(*options)

// WithDialect sets the SQL dialect. Sources default to "?" placeholders and
// LastInsertId keys, which suits SQLite and MySQL.
func WithDialect(d dialect.Dialect) Option {
	return func(o *options) { o.dialect = d }
}

// WithLogger sets the logger. Statements are logged at debug level with
// their arguments inlined.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets an observer told about every finished execution.
func WithObserver(obs stream.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTemplateCache replaces the process-wide template cache.
func WithTemplateCache(c *cache.TemplateCache) Option {
	return func(o *options) { o.templates = c }
}

var defaultTemplates = sync.OnceValue(func() *cache.TemplateCache {
	c, err := cache.NewTemplateCache(cache.DefaultSize)
	if err != nil {
		panic(err)
	}
	return c
})

func newSource(a database.Acquirer, opts []Option) *Source {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.templates == nil {
		o.templates = defaultTemplates()
	}
	return &Source{engine: engine.New(engine.Config{
		Acquirer:  a,
		Dialect:   o.dialect,
		Logger:    o.logger,
		Observer:  o.observer,
		Templates: o.templates,
	})}
}

// Conn returns a Source that prepares every statement on p and never closes
// it. p is typically a *sql.Conn or *sql.Tx.
func Conn(p database.Preparer, opts ...Option) *Source {
	return newSource(database.Borrow(p), opts)
}

// Pool returns a Source that takes a dedicated connection from p for every
// execution and returns it when the execution ends.
//
// An execution started while another is still streaming needs a second
// connection. When p allows a single open connection, as an in-memory SQLite
// database does, that execution waits until the first stream ends and
// blocks forever if it is issued from inside the stream's loop and ctx has
// no deadline. Collect the outer stream first, or use Conn with one
// connection for both.
func Pool(p database.ConnProvider, opts ...Option) *Source {
	return newSource(database.Own(p), opts)
}

// Open connects with the provider named in cfg and returns a pooled Source
// using the provider's dialect. Close the Source to close the connection.
//
// A ":memory:" SQLite database is pinned to one connection, so nested
// executions are subject to the limit described on Pool.
func Open(ctx context.Context, cfg connector.Config, opts ...Option) (*Source, error) {
	conn, err := connector.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithDialect(conn.Dialect())}, opts...)
	s := Pool(conn.DB(), opts...)
	s.conn = conn
	return s, nil
}

// Select starts a query.
func (s *Source) Select(sql string) *engine.SelectOperation {
	return s.engine.Select(sql)
}

// Insert starts an insert whose generated keys can be streamed.
func (s *Source) Insert(sql string) *engine.InsertOperation {
	return s.engine.Insert(sql)
}

// Execute starts an update or delete.
func (s *Source) Execute(sql string) *engine.UpdateOperation {
	return s.engine.Execute(sql)
}

// Dialect returns the dialect statements are rendered for.
func (s *Source) Dialect() dialect.Dialect {
	return s.engine.Dialect()
}

// Connection returns the connection opened by Open, or nil.
func (s *Source) Connection() connector.Connection {
	return s.conn
}

// Close closes the connection opened by Open. It is a no-op for sources
// built with Conn or Pool.
func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Many returns a lazy stream of every row of src mapped by mapper.
func Many[T any](src engine.RowSource, mapper stream.Mapper[T]) *stream.Stream[T] {
	return engine.Many(src, mapper)
}

// One returns a lazy future of the single row of src.
func One[T any](src engine.RowSource, mapper stream.Mapper[T]) *stream.Future[T] {
	return engine.One(src, mapper)
}

// Arg pairs a placeholder name with a value for NamedParameters.
func Arg(name string, v any) engine.NamedArg {
	return engine.Arg(name, v)
}
