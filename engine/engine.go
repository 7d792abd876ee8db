// Package engine turns SQL templates and bound parameters into lazy
// executions. Operations record everything a caller chains onto them and
// touch the driver only when the resulting stream or future is consumed.
package engine

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/Konsultn-Engineering/sqlflow/cache"
	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/dialect"
	"github.com/Konsultn-Engineering/sqlflow/stream"
)

// Config wires an Engine to its collaborators. Only Acquirer is required.
type Config struct {
	Acquirer database.Acquirer
	// Dialect spells placeholders and decides how inserts return keys.
	// Defaults to "?" placeholders with LastInsertId keys.
	Dialect   dialect.Dialect
	Logger    *slog.Logger
	Observer  stream.Observer
	Templates *cache.TemplateCache
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.Dialect == nil {
		cfg.Dialect = dialect.NewSQLiteDialect()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg}
}

// Select starts a query whose rows are streamed to a mapper.
func (e *Engine) Select(sql string) *SelectOperation {
	op := &SelectOperation{}
	op.binder = binder[*SelectOperation]{b: e.builder("select", sql), self: op}
	return op
}

// Insert starts an insert whose generated keys are streamed to a mapper.
func (e *Engine) Insert(sql string) *InsertOperation {
	op := &InsertOperation{}
	op.binder = binder[*InsertOperation]{b: e.builder("insert", sql), self: op}
	return op
}

// Execute starts an update or delete that reports rows affected.
func (e *Engine) Execute(sql string) *UpdateOperation {
	op := &UpdateOperation{}
	op.binder = binder[*UpdateOperation]{b: e.builder("update", sql), self: op}
	return op
}

// Dialect returns the dialect statements are rendered for.
func (e *Engine) Dialect() dialect.Dialect {
	return e.cfg.Dialect
}

// Ownership reports whether executions close the connection they run on.
func (e *Engine) Ownership() database.Ownership {
	return e.cfg.Acquirer.Ownership()
}

var returningClause = regexp.MustCompile(`(?i)\breturning\b`)

// withReturning asks for the inserted row back on dialects that report
// generated keys through INSERT ... RETURNING.
func (e *Engine) withReturning(sql string) string {
	if !e.cfg.Dialect.Returning() || returningClause.MatchString(sql) {
		return sql
	}
	return strings.TrimRight(strings.TrimSpace(sql), "; \t\n") + " RETURNING *"
}

func (e *Engine) builder(op, sql string) *Builder {
	if op == "insert" {
		sql = e.withReturning(sql)
	}
	tpl := e.cfg.Templates.Parse(sql)
	return &Builder{
		env:   e,
		op:    op,
		tpl:   tpl,
		query: tpl.Rebind(e.cfg.Dialect),
	}
}

func (e *Engine) streamOptions(op, sql string) []stream.Option {
	return []stream.Option{
		stream.WithLogger(e.cfg.Logger),
		stream.WithObserver(e.cfg.Observer),
		stream.WithLabel(op, sql),
	}
}
