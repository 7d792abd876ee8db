package stream

import (
	"context"
	"log/slog"
	"time"
)

// Outcome is how an execution terminated.
type Outcome int

const (
	Succeeded Outcome = iota
	Failed
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event describes one finished execution.
type Event struct {
	Op       string
	SQL      string
	Rows     int64
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Observer is told about every execution once it terminates. Observe is
// called on the goroutine that drove the execution and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Tee returns an Observer that forwards events to each non-nil observer.
func Tee(observers ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}

// Options configure how executions are reported.
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	// Op and SQL label events and log records.
	Op  string
	SQL string
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger used for execution records and close failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithObserver sets the observer told about terminated executions.
func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// WithLabel sets the operation name and statement attached to events.
func WithLabel(op, sql string) Option {
	return func(o *Options) {
		o.Op = op
		o.SQL = sql
	}
}

func newOptions(opts []Option) Options {
	o := Options{Op: "query"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o *Options) report(ctx context.Context, e Event) {
	e.Op, e.SQL = o.Op, o.SQL
	attrs := []slog.Attr{
		slog.String("op", e.Op),
		slog.String("outcome", e.Outcome.String()),
		slog.Int64("rows", e.Rows),
		slog.Duration("duration", e.Duration),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.Any("error", e.Err))
	}
	o.Logger.LogAttrs(ctx, slog.LevelDebug, "execution finished", attrs...)
	if o.Observer != nil {
		o.Observer.Observe(e)
	}
}
