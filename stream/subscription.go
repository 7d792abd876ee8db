package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Konsultn-Engineering/sqlflow/database"
)

// Execution is the driver state of one running query: the cursor being read
// and whatever must be closed after it, in order (statement, then the
// connection when it is owned).
type Execution struct {
	Cursor  database.Cursor
	Closers []io.Closer
}

// Opener performs the work deferred until the first pull: acquire, prepare,
// bind and execute. It is called at most once per subscription.
type Opener func(ctx context.Context) (*Execution, error)

// Mapper converts the current row into a value. It is called once per row,
// in row order, and must not retain the row.
type Mapper[T any] func(database.Row) (T, error)

// State is the lifecycle position of a Subscription.
type State int32

const (
	StateUnstarted State = iota
	StateFetching
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s >= StateDone
}

// Subscription pulls rows from one execution. Next, HasNext, Value and Err
// belong to a single consumer goroutine; Cancel may be called from any
// goroutine at any time.
//
// Resources are released exactly once, when the subscription reaches Done,
// Failed or Cancelled.
type Subscription[T any] struct {
	ctx    context.Context
	open   Opener
	mapper Mapper[T]
	opts   *Options
	// single fails an execution that yields no rows with ErrNoRows.
	single bool

	mu        sync.Mutex
	state     atomic.Int32
	cancelled atomic.Bool
	exec      *Execution
	peeked    bool
	value     T
	err       error
	rows      int64
	started   time.Time
	release   sync.Once
}

func newSubscription[T any](ctx context.Context, open Opener, mapper Mapper[T], opts *Options) *Subscription[T] {
	return &Subscription[T]{
		ctx:    ctx,
		open:   open,
		mapper: mapper,
		opts:   opts,
	}
}

// Next advances to the next row and maps it. It returns false once the
// stream is exhausted, failed or cancelled; Err tells those apart.
func (s *Subscription[T]) Next() bool {
	s.mu.Lock()
	defer s.unlock()

	if !s.pull() {
		return false
	}
	s.peeked = false
	v, err := s.mapRow()
	if err != nil {
		s.finish(StateFailed, database.Wrap("map row", err))
		return false
	}
	s.value = v
	s.rows++
	return true
}

// mapRow applies the mapper, turning a panic into an error so the
// execution is still released.
func (s *Subscription[T]) mapRow() (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMapperPanic, r)
		}
	}()
	return s.mapper(s.exec.Cursor)
}

// HasNext reports whether another row is available, advancing the cursor at
// most once. A following Next consumes that row without advancing again.
func (s *Subscription[T]) HasNext() bool {
	s.mu.Lock()
	defer s.unlock()
	return s.pull()
}

// Value returns the value produced by the last successful Next.
func (s *Subscription[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Err returns the error that failed the subscription, or nil. A cancelled
// subscription has no error.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Subscription[T]) State() State {
	return State(s.state.Load())
}

// Cancel stops the subscription. Resources are released immediately when no
// pull is in flight, otherwise as soon as the running pull returns. Cancel
// after termination is a no-op.
func (s *Subscription[T]) Cancel() {
	s.cancelled.Store(true)
	if s.mu.TryLock() {
		s.sweep()
		s.mu.Unlock()
	}
}

// pull makes a row available under the cursor, opening the execution on the
// first call. It reports false when no row will follow.
func (s *Subscription[T]) pull() bool {
	if s.State().terminal() {
		return false
	}
	if s.cancelled.Load() {
		s.finish(StateCancelled, nil)
		return false
	}
	if s.peeked {
		return true
	}
	if s.State() == StateUnstarted {
		s.started = time.Now()
		exec, err := s.open(s.ctx)
		if err != nil {
			s.finish(StateFailed, err)
			return false
		}
		s.exec = exec
		s.state.Store(int32(StateFetching))
		if s.cancelled.Load() {
			s.finish(StateCancelled, nil)
			return false
		}
	}
	if err := s.ctx.Err(); err != nil {
		s.finish(StateFailed, err)
		return false
	}
	if !s.exec.Cursor.Next() {
		switch err := s.exec.Cursor.Err(); {
		case err != nil:
			s.finish(StateFailed, database.Wrap("advance cursor", err))
		case s.single && s.rows == 0:
			s.finish(StateFailed, ErrNoRows)
		default:
			s.finish(StateDone, nil)
		}
		return false
	}
	s.peeked = true
	return true
}

// fail terminates the subscription with err unless it already ended.
func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	defer s.unlock()
	if !s.State().terminal() {
		s.finish(StateFailed, err)
	}
}

// unlock releases the pull lock and finishes a cancellation that arrived
// while the lock was held.
func (s *Subscription[T]) unlock() {
	s.mu.Unlock()
	if s.cancelled.Load() && !s.State().terminal() && s.mu.TryLock() {
		s.sweep()
		s.mu.Unlock()
	}
}

func (s *Subscription[T]) sweep() {
	if !s.State().terminal() {
		s.finish(StateCancelled, nil)
	}
}

// finish moves to a terminal state and releases resources. Callers hold mu.
func (s *Subscription[T]) finish(state State, err error) {
	s.err = err
	s.peeked = false
	s.state.Store(int32(state))
	s.release.Do(func() {
		if cerr := s.closeAll(); cerr != nil {
			s.opts.Logger.LogAttrs(s.ctx, slog.LevelWarn, "close execution resources",
				slog.String("op", s.opts.Op), slog.Any("error", cerr))
		}
		if s.started.IsZero() {
			s.started = time.Now()
		}
		s.opts.report(s.ctx, Event{
			Rows:     s.rows,
			Outcome:  outcomeOf(state),
			Err:      err,
			Duration: time.Since(s.started),
		})
	})
}

// closeAll closes the cursor and then every closer. Failures are collected
// and never stop later closes.
func (s *Subscription[T]) closeAll() error {
	if s.exec == nil {
		return nil
	}
	var errs []error
	if s.exec.Cursor != nil {
		if err := s.exec.Cursor.Close(); err != nil {
			errs = append(errs, database.Wrap("close cursor", err))
		}
	}
	for _, c := range s.exec.Closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func outcomeOf(s State) Outcome {
	switch s {
	case StateDone:
		return Succeeded
	case StateCancelled:
		return Cancelled
	default:
		return Failed
	}
}
