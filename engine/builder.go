package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/Konsultn-Engineering/sqlflow/bind"
	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/template"
)

var (
	// ErrUnboundSlot is returned when a placeholder received no value.
	ErrUnboundSlot = errors.New("placeholder has no bound value")
	// ErrSlotRange is returned when a value targets a placeholder the
	// statement does not have.
	ErrSlotRange = errors.New("parameter index out of range")
)

type bindOp struct {
	slot   int
	value  any
	tuple  bool
	values []any
}

// Builder records parameter bindings for one template and prepares the
// statement on demand. Registering a binding never touches the driver.
//
// A Builder is not safe for concurrent registration; the statements it
// builds may be executed concurrently.
type Builder struct {
	env   *Engine
	op    string
	tpl   *template.Template
	query string
	ops   []bindOp
	next  int
	err   error
}

// Template returns the parsed template.
func (b *Builder) Template() *template.Template { return b.tpl }

// Query returns the statement text sent to the driver.
func (b *Builder) Query() string { return b.query }

// Parameter binds v to the next positional slot. Successive calls fill slots
// 0, 1, 2 and so on.
func (b *Builder) Parameter(v any) *Builder {
	b.ops = append(b.ops, bindOp{slot: b.next, value: buffered(v)})
	b.next++
	return b
}

// Parameters binds vs[i] to slot i. It does not move the positional counter.
func (b *Builder) Parameters(vs ...any) *Builder {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = buffered(v)
	}
	b.ops = append(b.ops, bindOp{tuple: true, values: values})
	return b
}

// Named binds v to every slot the name occupies. An unknown name is
// reported when the statement is built.
func (b *Builder) Named(name string, v any) *Builder {
	slots, err := b.tpl.Indices(name)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	v = buffered(v)
	for _, slot := range slots {
		b.ops = append(b.ops, bindOp{slot: slot, value: v})
	}
	return b
}

// NamedArg is a name and the value bound to it.
type NamedArg struct {
	Name  string
	Value any
}

// Arg pairs a placeholder name with a value.
func Arg(name string, v any) NamedArg {
	return NamedArg{Name: name, Value: v}
}

// NamedParameters binds each pair as Named does, in order.
func (b *Builder) NamedParameters(args ...NamedArg) *Builder {
	for _, a := range args {
		b.Named(a.Name, a.Value)
	}
	return b
}

// snapshot copies the recorded bindings so later registrations do not leak
// into streams already handed out.
func (b *Builder) snapshot() *Builder {
	c := *b
	c.ops = slices.Clone(b.ops)
	return &c
}

// Args resolves the recorded bindings into one driver value per slot.
// Later bindings of a slot replace earlier ones.
func (b *Builder) Args() ([]any, error) {
	if b.err != nil {
		return nil, b.err
	}
	args := make([]any, b.tpl.NumSlots())
	bound := make([]bool, len(args))
	set := func(slot int, v any) error {
		if slot < 0 || slot >= len(args) {
			return fmt.Errorf("%w: slot %d of %d", ErrSlotRange, slot, len(args))
		}
		val, err := resolve(v)
		if err != nil {
			return fmt.Errorf("bind slot %d: %w", slot, err)
		}
		args[slot] = val
		bound[slot] = true
		return nil
	}
	for _, op := range b.ops {
		if !op.tuple {
			if err := set(op.slot, op.value); err != nil {
				return nil, err
			}
			continue
		}
		for i, v := range op.values {
			if err := set(i, v); err != nil {
				return nil, err
			}
		}
	}
	if i := slices.Index(bound, false); i >= 0 {
		return nil, fmt.Errorf("%w: slot %d", ErrUnboundSlot, i)
	}
	return args, nil
}

// Build resolves the bindings, acquires a connection and prepares the
// statement on it. Binding errors are reported before a connection is
// acquired.
func (b *Builder) Build(ctx context.Context) (*Prepared, error) {
	args, err := b.Args()
	if err != nil {
		return nil, err
	}
	cfg := b.env.cfg
	h, err := cfg.Acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := h.PrepareContext(ctx, b.query)
	if err != nil {
		if cerr := h.Close(); cerr != nil {
			cfg.Logger.LogAttrs(ctx, slog.LevelWarn, "release connection",
				slog.String("op", b.op), slog.Any("error", cerr))
		}
		return nil, database.Wrap("prepare statement", err)
	}
	cfg.Logger.LogAttrs(ctx, slog.LevelDebug, "prepared statement",
		slog.String("op", b.op),
		slog.String("ownership", cfg.Acquirer.Ownership().String()),
		slog.Any("sql", template.Statement{SQL: b.tpl.SQL(), Args: args, Renderer: cfg.Dialect}),
	)
	return &Prepared{Stmt: stmt, Args: args, handle: h, logger: cfg.Logger}, nil
}

// Prepared is a statement ready to run with its resolved arguments.
type Prepared struct {
	Stmt *sql.Stmt
	Args []any

	handle *database.Handle
	logger *slog.Logger
}

// Closers returns what must be closed once the execution ends: the
// statement, then the connection when it is owned.
func (p *Prepared) Closers() []io.Closer {
	return []io.Closer{
		closerFunc(func() error { return database.Wrap("close statement", p.Stmt.Close()) }),
		closerFunc(func() error { return database.Wrap("release connection", p.handle.Close()) }),
	}
}

// Close closes the statement and releases an owned connection.
func (p *Prepared) Close() error {
	var errs []error
	for _, c := range p.Closers() {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// discard closes p after a failed execution. The execution error wins, so
// close failures are only logged.
func (p *Prepared) discard(ctx context.Context, op string) {
	if err := p.Close(); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "close execution resources",
			slog.String("op", op), slog.Any("error", err))
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// readerArg drains a reader once so every execution of a cold statement
// binds the same bytes.
type readerArg struct {
	once sync.Once
	r    io.Reader
	b    []byte
	err  error
}

func (a *readerArg) bytes() ([]byte, error) {
	a.once.Do(func() {
		a.b, a.err = io.ReadAll(a.r)
		if a.b == nil {
			a.b = []byte{}
		}
	})
	return a.b, a.err
}

func buffered(v any) any {
	if r, ok := v.(io.Reader); ok && bind.Classify(v) == bind.Binary {
		return &readerArg{r: r}
	}
	return v
}

func resolve(v any) (any, error) {
	if a, ok := v.(*readerArg); ok {
		b, err := a.bytes()
		if err != nil {
			return nil, fmt.Errorf("read binary parameter: %w", err)
		}
		return b, nil
	}
	return bind.Value(v)
}
