// Package executor provides a bounded-concurrency map over a slice of
// inputs. At most limit operations are in flight at once; results come
// back in input order regardless of completion order.
package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 10

// Map runs fn over items with at most limit concurrent invocations and
// returns results in input order. The executor makes no retry decision:
// error policy belongs to fn. If any fn returns an error the whole batch
// fails, the group context is cancelled for in-flight operations, and
// partial results are discarded. Callers that want per-item error
// containment catch inside fn and encode the failure in R.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		g.Go(func() error {
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
