package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdownTimeout is returned by ShutdownGraceful when work is still
// pending once the timeout expires.
var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

const (
	rejectReasonShuttingDown = "shutting down"
	rejectReasonSkipped      = "skipped on shutdown"
)

// TaskScheduler is the runner-layer collaborator of the scheduling core.
// It turns posted tasks into Sequence pushes and PriorityQueue pushes,
// routes delayed tasks through the DelayedTaskManager, and hands workers
// the most important ready sequence.
type TaskScheduler struct {
	name        string
	workerCount int
	clock       TickClock

	queue        *PriorityQueue
	delayManager *DelayedTaskManager
	signal       chan struct{}

	lifecycleMu   sync.Mutex
	serviceThread *ServiceThread
	started       bool

	metricActive   atomic.Int32 // Executing in Worker
	inFlight       atomic.Int32 // Popped by GetWork, not yet returned by RunTask
	metricRejected atomic.Int64

	history *executionHistory

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger

	// Lifecycle
	shuttingDown atomic.Bool
}

// NewTaskScheduler creates a scheduler for workerCount workers. Tasks may be
// posted right away; delayed tasks wait in the DelayedTaskManager until Start.
func NewTaskScheduler(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	if workerCount < 1 {
		panic("TaskScheduler: workerCount must be at least 1")
	}

	s := &TaskScheduler{
		workerCount: workerCount,
		queue:       NewPriorityQueue(),
		signal:      make(chan struct{}, workerCount*2),
		history:     newExecutionHistory(defaultTaskHistoryCapacity),
	}

	// Apply config
	if config != nil {
		s.name = config.Name
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
		s.logger = config.Logger
		s.clock = config.Clock
	}

	// Use defaults if not provided
	if s.name == "" {
		s.name = DefaultSchedulerName
	}
	if s.logger == nil {
		s.logger = NewNoOpLogger()
	}
	if s.clock == nil {
		s.clock = DefaultTickClock{}
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: s.logger}
	}

	s.delayManager = NewDelayedTaskManager(s.clock, s.logger)
	return s
}

// Start launches the service thread and starts the DelayedTaskManager,
// replaying delayed tasks posted so far. Calling Start again is a no-op.
func (s *TaskScheduler) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started || s.shuttingDown.Load() {
		return
	}
	s.started = true
	s.serviceThread = NewServiceThread(s.name+"-service", s.logger)
	s.delayManager.Start(s.serviceThread)
	s.logger.Info("task scheduler started", F("scheduler", s.name), F("workers", s.workerCount))
}

// Name returns the label used in logs and metrics.
func (s *TaskScheduler) Name() string { return s.name }

// Clock returns the tick clock used for sequencing.
func (s *TaskScheduler) Clock() TickClock { return s.clock }

// PostTaskInSequence posts task into seq. Tasks with a delay go through the
// DelayedTaskManager; the rest are pushed into seq immediately. Once
// shutdown has started only BlockShutdown tasks are accepted.
func (s *TaskScheduler) PostTaskInSequence(task *PendingTask, seq *Sequence) bool {
	if task == nil || task.Task == nil {
		panic("TaskScheduler: PostTaskInSequence called with an empty task")
	}
	if seq == nil {
		panic("TaskScheduler: PostTaskInSequence called with a nil sequence")
	}
	task.demoteDelayedBlockShutdown()

	if !s.canPost(task) {
		s.reject(task, rejectReasonShuttingDown)
		return false
	}

	if task.Delay > 0 {
		s.delayManager.AddDelayedTask(task, func(t *PendingTask) {
			s.postTaskNow(t, seq)
		})
		return true
	}

	s.postTaskNow(task, seq)
	return true
}

// postTaskNow is where a ready task enters its sequence, and the sequence
// enters the PriorityQueue if it was not already scheduled.
func (s *TaskScheduler) postTaskNow(task *PendingTask, seq *Sequence) {
	if !s.canPost(task) {
		s.reject(task, rejectReasonShuttingDown)
		return
	}

	if !seq.PushTask(task) {
		return
	}

	s.enqueueSequence(seq)
}

func (s *TaskScheduler) enqueueSequence(seq *Sequence) {
	sortKey := seq.GetSortKey()

	var depth int
	s.queue.WithTransaction(func(txn *Transaction) {
		txn.Push(seq, sortKey)
		depth = txn.Size()
	})
	s.metrics.RecordQueueDepth(s.name, depth)

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but the sequence is already queued
		// This is not an error, just a optimization hint
	}
}

// GetWork blocks until a sequence is ready or stopCh closes. The returned
// sequence has been popped and belongs to the caller, who must hand it to
// RunTask.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (*Sequence, bool) {
	for {
		var seq *Sequence
		var depth int
		s.queue.WithTransaction(func(txn *Transaction) {
			if !txn.IsEmpty() {
				seq = txn.PopSequence()
				// Counted under the queue lock so a drain check always
				// finds the sequence in one of the two counts.
				s.inFlight.Add(1)
				depth = txn.Size()
			}
		})
		if seq != nil {
			s.metrics.RecordQueueDepth(s.name, depth)
			return seq, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// RunTask takes the head task of seq, runs it with no lock held, and
// pushes seq back with a fresh sort key if it still has tasks.
func (s *TaskScheduler) RunTask(ctx context.Context, workerID int, seq *Sequence) {
	// Runs after any push back, so the sequence stays visible to drain checks.
	defer s.inFlight.Add(-1)

	task := seq.TakeTask()

	if s.shuttingDown.Load() && task.Traits.ShutdownBehavior == SkipOnShutdown {
		s.reject(task, rejectReasonSkipped)
	} else {
		s.runTask(ctx, workerID, task)
	}

	if seq.DidRunTask() {
		s.enqueueSequence(seq)
	}
}

func (s *TaskScheduler) runTask(ctx context.Context, workerID int, task *PendingTask) {
	s.metricActive.Add(1)
	startedAt := time.Now()
	panicked := false

	defer func() {
		finishedAt := time.Now()
		s.metricActive.Add(-1)
		s.metrics.RecordTaskDuration(s.name, task.Traits.Priority, finishedAt.Sub(startedAt))
		s.history.Add(TaskExecutionRecord{
			TaskID:     task.ID,
			PostedFrom: task.PostedFrom,
			Priority:   task.Traits.Priority,
			WorkerID:   workerID,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   finishedAt.Sub(startedAt),
			Panicked:   panicked,
		})
	}()

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.metrics.RecordTaskPanic(s.name, r)
			s.panicHandler.HandlePanic(ctx, task, workerID, r, debug.Stack())
		}
	}()

	task.Task(ctx)
}

func (s *TaskScheduler) canPost(task *PendingTask) bool {
	return !s.shuttingDown.Load() || task.Traits.ShutdownBehavior == BlockShutdown
}

func (s *TaskScheduler) reject(task *PendingTask, reason string) {
	s.metricRejected.Add(1)
	s.rejectedTaskHandler.HandleRejectedTask(task, reason)
	s.metrics.RecordTaskRejected(s.name, reason)
}

// Shutdown stops accepting non-blocking tasks, cancels pending timers and
// drops every queued sequence.
func (s *TaskScheduler) Shutdown() {
	// 1. Mark as shutting down to stop accepting new tasks
	s.shuttingDown.Store(true)

	// 2. Stop timers (no more delayed tasks become ready)
	s.stopServiceThread()

	// 3. Clear queue to release all task references
	var dropped []*Sequence
	s.queue.WithTransaction(func(txn *Transaction) {
		dropped = txn.Clear()
	})
	for _, seq := range dropped {
		seq.clear()
	}
	s.logger.Info("task scheduler shut down", F("scheduler", s.name), F("dropped_sequences", len(dropped)))
}

// ShutdownGraceful stops accepting non-blocking tasks and waits for queued
// sequences and sequences held by workers to finish. SkipOnShutdown tasks still queued are skipped.
// Returns an error wrapping ErrShutdownTimeout if work remains after timeout.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	// 1. Mark as shutting down to stop accepting new tasks
	s.shuttingDown.Store(true)

	// 2. Delayed tasks never block shutdown
	s.stopServiceThread()

	// 3. Wait for queues to drain and active tasks to complete
	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedSequenceCount() == 0 && s.InFlightSequenceCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			s.Shutdown()
			return fmt.Errorf("%w after %v, forced clearing", ErrShutdownTimeout, timeout)
		case <-ticker.C:
		}
	}
}

func (s *TaskScheduler) stopServiceThread() {
	s.lifecycleMu.Lock()
	thread := s.serviceThread
	s.lifecycleMu.Unlock()

	if thread != nil {
		thread.Stop()
	}
}

// IsShuttingDown reports whether Shutdown or ShutdownGraceful has been called.
func (s *TaskScheduler) IsShuttingDown() bool { return s.shuttingDown.Load() }

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) ActiveTaskCount() int { return int(s.metricActive.Load()) }
func (s *TaskScheduler) RejectedTaskCount() int64 {
	return s.metricRejected.Load()
}

// InFlightSequenceCount returns the number of sequences popped by GetWork
// whose RunTask has not returned yet.
func (s *TaskScheduler) InFlightSequenceCount() int { return int(s.inFlight.Load()) }

// QueuedSequenceCount returns the number of sequences waiting for a worker.
func (s *TaskScheduler) QueuedSequenceCount() int {
	var n int
	s.queue.WithTransaction(func(txn *Transaction) {
		n = txn.Size()
	})
	return n
}

// DelayedTaskCount returns armed timers plus tasks buffered before Start.
func (s *TaskScheduler) DelayedTaskCount() int {
	n := s.delayManager.PendingCount()

	s.lifecycleMu.Lock()
	thread := s.serviceThread
	s.lifecycleMu.Unlock()
	if thread != nil {
		n += thread.PendingTimerCount()
	}
	return n
}

// RecentExecutions returns up to limit execution records, newest first.
func (s *TaskScheduler) RecentExecutions(limit int) []TaskExecutionRecord {
	return s.history.Recent(limit)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
