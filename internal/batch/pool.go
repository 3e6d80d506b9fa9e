package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one fetch.
type Result[V any] struct {
	Value V
	Err   error
}

// Pool runs independent fetches with a fixed number of workers.
type Pool struct {
	maxWorkers int
}

// NewPool creates a pool running at most maxWorkers fetches at once.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{maxWorkers: maxWorkers}
}

// MaxWorkers returns the pool size.
func (p *Pool) MaxWorkers() int { return p.maxWorkers }

// Run calls fetch once per key and blocks until every call has returned.
// Failures are reported per key and never stop the other fetches. Each call
// writes its own slot, so no locking is needed to collect results.
func Run[K comparable, V any](ctx context.Context, p *Pool, keys []K, fetch func(context.Context, K) (V, error)) map[K]Result[V] {
	slots := make([]Result[V], len(keys))

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)
	for i, key := range keys {
		g.Go(func() error {
			v, err := fetch(ctx, key)
			slots[i] = Result[V]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[K]Result[V], len(keys))
	for i, key := range keys {
		results[key] = slots[i]
	}
	return results
}
