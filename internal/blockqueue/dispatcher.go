// Package blockqueue bounds how many upload blocks are in flight at
// once. It is shared by both the random-access and streaming dispatch
// paths so the "no more than K unread-but-started blocks" invariant
// lives in exactly one place.
package blockqueue

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Window is the fixed bounded-concurrency block dispatch window. It is
// not configurable at this level: the engine always dispatches at most
// three blocks concurrently.
const Window = 3

// Dispatcher runs a bounded number of block tasks concurrently,
// collecting the first error and cancelling outstanding work on
// failure. Ground: storage/s3/destination.go's uploadSemaphore +
// errgroup.Group pairing in uploadParts.
type Dispatcher struct {
	group *errgroup.Group
	ctx   context.Context
	sem   *semaphore.Weighted
}

// New builds a Dispatcher bounded to Window concurrent tasks, derived
// from ctx. The returned context is cancelled as soon as any dispatched
// task returns an error.
func New(ctx context.Context) *Dispatcher {
	group, groupCtx := errgroup.WithContext(ctx)
	return &Dispatcher{
		group: group,
		ctx:   groupCtx,
		sem:   semaphore.NewWeighted(Window),
	}
}

// Context returns the dispatcher's derived context, cancelled once any
// dispatched task fails.
func (d *Dispatcher) Context() context.Context { return d.ctx }

// Acquire blocks until a dispatch slot is free or ctx is done. Callers
// on the streaming path call this before reading the next chunk, so a
// slow consumer throttles production rather than buffering unboundedly.
func (d *Dispatcher) Acquire(ctx context.Context) error {
	return d.sem.Acquire(ctx, 1)
}

// Release frees a dispatch slot. Always paired with a prior Acquire.
func (d *Dispatcher) Release() { d.sem.Release(1) }

// Go acquires a slot, then runs task in its own goroutine, releasing
// the slot when it completes. The caller must not also call Acquire
// for the same task.
func (d *Dispatcher) Go(task func(ctx context.Context) error) error {
	if err := d.Acquire(d.ctx); err != nil {
		return err
	}
	d.group.Go(func() error {
		defer d.Release()
		return task(d.ctx)
	})
	return nil
}

// Wait blocks until every dispatched task has returned, yielding the
// first non-nil error encountered, if any.
func (d *Dispatcher) Wait() error { return d.group.Wait() }
