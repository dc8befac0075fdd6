package etl

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ── Executor ───────────────────────────────────────────────
// Task submission seam between the orchestrator and whatever runs
// the work. The orchestrator never spawns goroutines itself, so it
// can be tested with SerialExecutor and run with PoolExecutor.

// Task is one unit of work.
type Task func(ctx context.Context) error

// Handle is returned by Submit; Wait blocks until the task has finished.
type Handle interface {
	Wait() error
}

// Executor runs submitted tasks.
type Executor interface {
	Submit(ctx context.Context, task Task) Handle
}

type doneHandle struct{ err error }

func (h doneHandle) Wait() error { return h.err }

// SerialExecutor runs each task inline inside Submit.
type SerialExecutor struct{}

func (SerialExecutor) Submit(ctx context.Context, task Task) Handle {
	if err := ctx.Err(); err != nil {
		return doneHandle{err: err}
	}
	return doneHandle{err: task(ctx)}
}

// PoolExecutor runs tasks on goroutines, at most Size at a time.
type PoolExecutor struct {
	sem *semaphore.Weighted
}

// NewPoolExecutor creates a pool of the given size (minimum 1).
func NewPoolExecutor(size int) *PoolExecutor {
	if size < 1 {
		size = 1
	}
	return &PoolExecutor{sem: semaphore.NewWeighted(int64(size))}
}

type asyncHandle struct {
	done chan struct{}
	err  error
}

func (h *asyncHandle) Wait() error {
	<-h.done
	return h.err
}

func (p *PoolExecutor) Submit(ctx context.Context, task Task) Handle {
	h := &asyncHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			h.err = err
			return
		}
		defer p.sem.Release(1)
		h.err = task(ctx)
	}()
	return h
}

// NewExecutor returns a SerialExecutor for workers <= 1, a PoolExecutor otherwise.
func NewExecutor(workers int) Executor {
	if workers <= 1 {
		return SerialExecutor{}
	}
	return NewPoolExecutor(workers)
}
