// Package pool bounds the number of concurrent downstream calls.
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool limits concurrent work using a weighted semaphore.
// One Pool is shared by every bulk request so that the total number of
// in-flight photo probes stays bounded regardless of request concurrency.
type Pool struct {
	sem   *semaphore.Weighted
	limit int
}

// New creates a Pool that allows at most limit concurrent operations.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Limit returns the configured concurrency bound.
func (p *Pool) Limit() int {
	if p == nil {
		return 0
	}
	return p.limit
}

// Run acquires a slot, runs fn, and releases the slot.
// Blocks if all slots are busy. Returns ctx.Err() if the context
// is cancelled while waiting for a slot; fn is not called in that case.
// If the pool is nil, fn is executed directly without concurrency control.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
