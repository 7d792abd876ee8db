// Package stream delivers query results lazily. A Stream or Future holds the
// recipe for an execution and runs it only when a consumer pulls; every
// terminal call runs it again from scratch.
package stream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrNoRows is returned by Single when the execution yields no row.
	ErrNoRows = fmt.Errorf("expected exactly one row, got none: %w", sql.ErrNoRows)
	// ErrTooManyRows is returned by Single when a second row follows the
	// first.
	ErrTooManyRows = errors.New("expected exactly one row, got more")
	// ErrMapperPanic is returned when a row mapper panics.
	ErrMapperPanic = errors.New("row mapper panicked")
)

// Stream is a cold sequence of mapped rows.
type Stream[T any] struct {
	open   Opener
	mapper Mapper[T]
	opts   Options
}

// New returns a stream that opens an execution with open and maps each row
// with mapper. Nothing runs until the stream is consumed.
func New[T any](open Opener, mapper Mapper[T], opts ...Option) *Stream[T] {
	return &Stream[T]{open: open, mapper: mapper, opts: newOptions(opts)}
}

// Subscribe starts a new subscription. The execution opens on its first
// pull; a subscription cancelled before then never touches the driver.
func (s *Stream[T]) Subscribe(ctx context.Context) *Subscription[T] {
	return newSubscription(ctx, s.open, s.mapper, &s.opts)
}

// Iter returns the stream as a range-over-func sequence. Breaking out of the
// loop cancels the subscription. A failure is yielded once, last, with the
// zero value.
func (s *Stream[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		sub := s.Subscribe(ctx)
		defer sub.Cancel()
		for sub.Next() {
			if !yield(sub.Value(), nil) {
				return
			}
		}
		if err := sub.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Collect runs the stream to completion and returns every value.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for v, err := range s.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Chan runs the stream on a new goroutine and sends each value on the
// returned channel, which is closed at termination. A failure arrives as the
// last Result. Cancelling ctx stops the goroutine and releases the
// execution, so consumers that stop reading early must cancel it.
func (s *Stream[T]) Chan(ctx context.Context, buffer int) <-chan Result[T] {
	ch := make(chan Result[T], buffer)
	go func() {
		defer close(ch)
		sub := s.Subscribe(ctx)
		defer sub.Cancel()
		for sub.Next() {
			select {
			case ch <- Result[T]{Value: sub.Value()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sub.Err(); err != nil {
			select {
			case ch <- Result[T]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// Single returns a future of the only value of the stream. It fails with
// ErrNoRows on an empty stream and ErrTooManyRows when a second row exists;
// both end the execution as Failed.
func (s *Stream[T]) Single() *Future[T] {
	return NewFuture(func(ctx context.Context) (T, error) {
		var zero T
		sub := s.Subscribe(ctx)
		sub.single = true
		defer sub.Cancel()
		if !sub.Next() {
			if err := sub.Err(); err != nil {
				return zero, err
			}
			return zero, ErrNoRows
		}
		v := sub.Value()
		if sub.HasNext() {
			sub.fail(ErrTooManyRows)
			return zero, ErrTooManyRows
		}
		if err := sub.Err(); err != nil {
			return zero, err
		}
		return v, nil
	})
}
