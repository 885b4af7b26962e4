package core

import (
	"context"
	"sync/atomic"
	"time"
)

// SequencedTaskRunner runs its tasks one at a time in posting order. All
// tasks share one Sequence; the Sequence's sort key (priority of the head
// task, then how long it has waited) decides when a worker picks it up.
type SequencedTaskRunner struct {
	threadPool ThreadPool
	sequence   *Sequence
	name       string
	traits     TaskTraits  // used by posts that take no traits
	closed     atomic.Bool // indicates if the runner is closed
}

func NewSequencedTaskRunner(threadPool ThreadPool) *SequencedTaskRunner {
	return NewSequencedTaskRunnerWithTraits(threadPool, DefaultTaskTraits())
}

// NewSequencedTaskRunnerWithTraits creates a runner whose PostTask,
// PostDelayedTask and PostRepeatingTask use traits.
func NewSequencedTaskRunnerWithTraits(threadPool ThreadPool, traits TaskTraits) *SequencedTaskRunner {
	if threadPool == nil {
		panic("SequencedTaskRunner: threadPool must not be nil")
	}
	seq := NewSequence(threadPool.Clock())
	return &SequencedTaskRunner{
		threadPool: threadPool,
		sequence:   seq,
		name:       "sequence-" + seq.Token(),
		traits:     traits,
	}
}

// Traits returns the traits applied to posts that take none.
func (r *SequencedTaskRunner) Traits() TaskTraits { return r.traits }

// Name returns the runner name, derived from its sequence token unless set.
func (r *SequencedTaskRunner) Name() string { return r.name }

// SetName sets the name used in Stats.
func (r *SequencedTaskRunner) SetName(name string) { r.name = name }

// PostTask submits task with the runner's traits
func (r *SequencedTaskRunner) PostTask(task Task) {
	r.post(Here(1), task, r.traits, 0)
}

// PostTaskWithTraits submits task with traits
func (r *SequencedTaskRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.post(Here(1), task, traits, 0)
}

func (r *SequencedTaskRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.post(Here(1), task, r.traits, delay)
}

func (r *SequencedTaskRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	r.post(Here(1), task, traits, delay)
}

func (r *SequencedTaskRunner) post(from Location, task Task, traits TaskTraits, delay time.Duration) {
	if task == nil {
		panic("SequencedTaskRunner: task must not be nil")
	}
	if r.closed.Load() {
		return
	}

	wrapped := func(ctx context.Context) {
		// Queued tasks of a closed runner drain as no-ops
		if r.closed.Load() {
			return
		}
		task(withTaskRunner(ctx, r))
	}
	r.threadPool.PostTaskInSequence(NewPendingTask(from, wrapped, traits, delay), r.sequence)
}

// PendingTaskCount returns the number of tasks waiting in the sequence.
func (r *SequencedTaskRunner) PendingTaskCount() int {
	return r.sequence.Len()
}

// Stats returns current observability data for this runner.
func (r *SequencedTaskRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:    r.name,
		Type:    "sequenced",
		Pending: r.PendingTaskCount(),
		Closed:  r.IsClosed(),
	}
}

// =============================================================================
// Repeating Task Implementation
// =============================================================================

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle interface {
	Stop()
	IsStopped() bool
}

// repeatingTaskHandle implements RepeatingTaskHandle interface
type repeatingTaskHandle struct {
	runner   *SequencedTaskRunner
	task     Task
	interval time.Duration
	traits   TaskTraits
	stopped  atomic.Bool
}

func (h *repeatingTaskHandle) Stop() {
	h.stopped.Store(true)
}

func (h *repeatingTaskHandle) IsStopped() bool {
	return h.stopped.Load()
}

// createRepeatingTask creates a self-scheduling repeating task
func (h *repeatingTaskHandle) createRepeatingTask() Task {
	return func(ctx context.Context) {
		if h.IsStopped() || h.runner.IsClosed() {
			return
		}

		h.task(ctx)

		if !h.IsStopped() && !h.runner.IsClosed() {
			h.runner.PostDelayedTaskWithTraits(h.createRepeatingTask(), h.interval, h.traits)
		}
	}
}

// PostRepeatingTask submits a task that repeats at a fixed interval
func (r *SequencedTaskRunner) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithInitialDelay(task, 0, interval, r.traits)
}

// PostRepeatingTaskWithInitialDelay submits a repeating task with an initial delay
// The task will first execute after initialDelay, then repeat every interval.
func (r *SequencedTaskRunner) PostRepeatingTaskWithInitialDelay(
	task Task,
	initialDelay, interval time.Duration,
	traits TaskTraits,
) RepeatingTaskHandle {
	if interval <= 0 {
		panic("SequencedTaskRunner: repeating interval must be positive")
	}
	handle := &repeatingTaskHandle{
		runner:   r,
		task:     task,
		interval: interval,
		traits:   traits,
	}

	repeatingTask := handle.createRepeatingTask()
	if initialDelay > 0 {
		r.PostDelayedTaskWithTraits(repeatingTask, initialDelay, traits)
	} else {
		r.PostTaskWithTraits(repeatingTask, traits)
	}

	return handle
}

// =============================================================================
// Shutdown and Lifecycle Management
// =============================================================================

// Shutdown marks the runner as closed. New posts are dropped and tasks
// still queued in the sequence return without running. Repeating tasks
// stop on their next execution.
//
// Note: This will not interrupt currently executing tasks.
func (r *SequencedTaskRunner) Shutdown() {
	r.closed.Store(true)
}

// IsClosed returns true if the runner has been shut down.
func (r *SequencedTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// =============================================================================
// Task and Reply Pattern
// =============================================================================

// PostTaskAndReply executes task on this runner, then posts reply to replyRunner.
// If task panics, reply will not be executed.
func (r *SequencedTaskRunner) PostTaskAndReply(task Task, reply Task, replyRunner TaskRunner) {
	PostTaskAndReply(r, task, reply, replyRunner)
}
