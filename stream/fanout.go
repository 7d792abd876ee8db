package stream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// All runs the futures concurrently, at most limit at a time (no limit when
// limit <= 0), and returns their values in argument order. The first failure
// cancels the context of the others and is returned.
func All[T any](ctx context.Context, limit int, futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Get(ctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FlatMap builds a future for every input with fn and runs them as All does.
func FlatMap[In, Out any](ctx context.Context, inputs []In, limit int, fn func(In) *Future[Out]) ([]Out, error) {
	futures := make([]*Future[Out], len(inputs))
	for i, in := range inputs {
		futures[i] = fn(in)
	}
	return All(ctx, limit, futures...)
}

// Concat runs the streams one after another and collects every value.
func Concat[T any](ctx context.Context, streams ...*Stream[T]) ([]T, error) {
	var out []T
	for _, s := range streams {
		vs, err := s.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, vs...)
	}
	return out, nil
}
