package core

import (
	"context"
	"sync/atomic"
	"time"
)

// ParallelTaskRunner gives every task its own Sequence, so tasks are
// ordered only by priority and posting time and may run concurrently.
type ParallelTaskRunner struct {
	threadPool ThreadPool
	name       string
	closed     atomic.Bool
}

// NewParallelTaskRunner panics if threadPool is nil.
func NewParallelTaskRunner(threadPool ThreadPool, name string) *ParallelTaskRunner {
	if threadPool == nil {
		panic("ParallelTaskRunner: threadPool must not be nil")
	}
	if name == "" {
		name = "parallel"
	}
	return &ParallelTaskRunner{threadPool: threadPool, name: name}
}

func (r *ParallelTaskRunner) Name() string { return r.name }

func (r *ParallelTaskRunner) PostTask(task Task) {
	r.post(Here(1), task, DefaultTaskTraits(), 0)
}

func (r *ParallelTaskRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.post(Here(1), task, traits, 0)
}

func (r *ParallelTaskRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.post(Here(1), task, DefaultTaskTraits(), delay)
}

func (r *ParallelTaskRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	r.post(Here(1), task, traits, delay)
}

func (r *ParallelTaskRunner) post(from Location, task Task, traits TaskTraits, delay time.Duration) {
	if task == nil {
		panic("ParallelTaskRunner: task must not be nil")
	}
	if r.closed.Load() {
		return
	}

	wrapped := func(ctx context.Context) {
		if r.closed.Load() {
			return
		}
		task(withTaskRunner(ctx, r))
	}
	seq := NewSequence(r.threadPool.Clock())
	r.threadPool.PostTaskInSequence(NewPendingTask(from, wrapped, traits, delay), seq)
}

// Shutdown drops new posts; queued tasks return without running.
func (r *ParallelTaskRunner) Shutdown() {
	r.closed.Store(true)
}

func (r *ParallelTaskRunner) IsClosed() bool {
	return r.closed.Load()
}
