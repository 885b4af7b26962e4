package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PostTaskNowCallback receives a delayed task once its delay has elapsed.
type PostTaskNowCallback func(task *PendingTask)

type delayedTaskAndCallback struct {
	task    *PendingTask
	postNow PostTaskNowCallback
}

// DelayedTaskManager holds tasks whose delay has not elapsed and hands them
// to their PostTaskNowCallback when it has. Timers are armed on a service
// TaskRunner supplied to Start; tasks added before Start are buffered and
// replayed with whatever remains of their delay.
type DelayedTaskManager struct {
	clock  TickClock
	logger Logger

	// started is read without the lock on the fast path of AddDelayedTask.
	// It flips to true once, under mu, and never goes back.
	started atomic.Bool

	mu                    sync.Mutex
	serviceRunner         TaskRunner
	tasksAddedBeforeStart []delayedTaskAndCallback
}

// NewDelayedTaskManager creates a manager in the not-started state.
// A nil clock uses DefaultTickClock; a nil logger discards logs.
func NewDelayedTaskManager(clock TickClock, logger Logger) *DelayedTaskManager {
	if clock == nil {
		clock = DefaultTickClock{}
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DelayedTaskManager{
		clock:  clock,
		logger: logger,
	}
}

// Start fixes the service runner and flushes every task buffered so far.
// It panics if called twice or with a nil runner.
func (dm *DelayedTaskManager) Start(serviceRunner TaskRunner) {
	if serviceRunner == nil {
		panic("DelayedTaskManager: Start called with a nil service runner")
	}

	var buffered []delayedTaskAndCallback
	func() {
		dm.mu.Lock()
		defer dm.mu.Unlock()

		if dm.started.Load() {
			panic("DelayedTaskManager: Start called twice")
		}
		dm.serviceRunner = serviceRunner
		buffered = dm.tasksAddedBeforeStart
		dm.tasksAddedBeforeStart = nil
		dm.started.Store(true)
	}()

	now := dm.clock.NowTicks()
	dm.logger.Debug("delayed task manager started", F("replayed", len(buffered)))
	for _, item := range buffered {
		delay := max(item.task.DelayedRunTime.Sub(now), 0)
		dm.addDelayedTaskNow(item.task, delay, item.postNow)
	}
}

// AddDelayedTask schedules postNow(task) to run once task.Delay has elapsed.
// It panics if the task is empty, has no delay, or postNow is nil.
func (dm *DelayedTaskManager) AddDelayedTask(task *PendingTask, postNow PostTaskNowCallback) {
	if task == nil || task.Task == nil {
		panic("DelayedTaskManager: AddDelayedTask called with an empty task")
	}
	if task.Delay <= 0 {
		panic("DelayedTaskManager: AddDelayedTask called with a task that has no delay")
	}
	if postNow == nil {
		panic("DelayedTaskManager: AddDelayedTask called with a nil callback")
	}
	task.demoteDelayedBlockShutdown()

	if task.DelayedRunTime.IsZero() {
		task.DelayedRunTime = dm.clock.NowTicks().Add(task.Delay)
	}

	if !dm.started.Load() {
		dm.mu.Lock()
		if !dm.started.Load() {
			dm.tasksAddedBeforeStart = append(dm.tasksAddedBeforeStart, delayedTaskAndCallback{
				task:    task,
				postNow: postNow,
			})
			dm.mu.Unlock()
			return
		}
		dm.mu.Unlock()
	}

	dm.addDelayedTaskNow(task, task.Delay, postNow)
}

// addDelayedTaskNow is the only place a timer gets armed.
func (dm *DelayedTaskManager) addDelayedTaskNow(task *PendingTask, delay time.Duration, postNow PostTaskNowCallback) {
	// serviceRunner is immutable once started is observed true.
	dm.serviceRunner.PostDelayedTask(func(ctx context.Context) {
		postNow(task)
	}, delay)
}

// Started reports whether Start has been called.
func (dm *DelayedTaskManager) Started() bool {
	return dm.started.Load()
}

// PendingCount returns the number of tasks buffered while not started.
func (dm *DelayedTaskManager) PendingCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.tasksAddedBeforeStart)
}
