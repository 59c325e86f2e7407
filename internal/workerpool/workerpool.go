// Package workerpool provides the two bounded concurrency pools a
// server instance runs: the request pool (K, bounds concurrently
// accepted transfer requests) and the transmission pool (L, bounds
// concurrently active send loops), per §4.O.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent work to a fixed number of permits. It is the
// semaphore-gated replacement for the source's fixed-size thread pool:
// Submit blocks until a permit is free or ctx is cancelled, then runs
// fn in its own goroutine.
//
// Unlike an errgroup, one task's error never cancels another task's
// context: a single malformed request failing is routine, not a
// pool-wide fault, so it must not stop the pool from accepting
// further work for the rest of the process's life.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// New returns a Pool that runs at most size goroutines concurrently.
func New(size int64) *Pool {
	return &Pool{sem: semaphore.NewWeighted(size)}
}

// Submit acquires a permit and runs fn in a new goroutine, passing it
// ctx unchanged. It blocks until a permit is available or ctx is
// cancelled. A non-nil error from fn is recorded and surfaces from
// Wait; later errors from other goroutines do not overwrite the first
// one.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		if err := fn(ctx); err != nil {
			p.mu.Lock()
			if p.firstErr == nil {
				p.firstErr = err
			}
			p.mu.Unlock()
		}
	}()
	return nil
}

// Wait blocks until every submitted task has returned, then returns
// the first non-nil error any of them produced (if any).
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}
