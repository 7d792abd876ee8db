package stream

import (
	"context"
	"time"
)

// Result carries a value or the error that replaced it.
type Result[T any] struct {
	Value T
	Err   error
}

// Future is a cold computation of one value. Every Get runs it again.
type Future[T any] struct {
	run  func(ctx context.Context) (T, error)
	opts *Options
}

// NewFuture wraps run. With options, every run is reported to the
// configured logger and observer.
func NewFuture[T any](run func(ctx context.Context) (T, error), opts ...Option) *Future[T] {
	f := &Future[T]{run: run}
	if len(opts) > 0 {
		o := newOptions(opts)
		f.opts = &o
	}
	return f
}

// Get runs the computation and waits for its result.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	if f.opts == nil {
		return f.run(ctx)
	}
	start := time.Now()
	v, err := f.run(ctx)
	e := Event{Outcome: Succeeded, Err: err, Duration: time.Since(start)}
	if err != nil {
		e.Outcome = Failed
	} else if n, ok := any(v).(int64); ok {
		// rows affected
		e.Rows = n
	}
	f.opts.report(ctx, e)
	return v, err
}

// Async runs the computation on a new goroutine. The channel receives
// exactly one Result and is then closed.
func (f *Future[T]) Async(ctx context.Context) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := f.Get(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Map returns a future applying fn to the value of f.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return NewFuture(func(ctx context.Context) (U, error) {
		v, err := f.Get(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}
