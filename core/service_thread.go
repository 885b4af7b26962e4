package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ServiceThread binds a dedicated goroutine that runs scheduler
// bookkeeping, most importantly the timers armed by DelayedTaskManager.
//
// Delayed posts use time.AfterFunc and inject the task back into the loop
// when the timer fires, so timers are never delayed by worker congestion.
type ServiceThread struct {
	// Task queue: Buffered channel for tasks
	workQueue chan Task

	// Lifecycle control
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	closed  atomic.Bool

	timersMu    sync.Mutex
	timers      map[uint64]*time.Timer
	nextTimerID uint64

	name   string
	logger Logger
}

// NewServiceThread creates and starts a ServiceThread.
func NewServiceThread(name string, logger Logger) *ServiceThread {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &ServiceThread{
		workQueue: make(chan Task, 100), // Buffer to avoid blocking timer goroutines
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		timers:    make(map[uint64]*time.Timer),
		name:      name,
		logger:    logger,
	}

	go r.runLoop()

	return r
}

// Name returns the name of the service thread
func (r *ServiceThread) Name() string {
	return r.name
}

// PostTask submits a task for execution
func (r *ServiceThread) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

// PostTaskWithTraits submits a task; traits are ignored, everything runs in order.
func (r *ServiceThread) PostTaskWithTraits(task Task, traits TaskTraits) {
	if r.closed.Load() {
		return
	}

	select {
	case <-r.ctx.Done():
		return
	case r.workQueue <- task:
	}
}

// PostDelayedTask submits a task that runs after delay. A non-positive
// delay posts immediately.
func (r *ServiceThread) PostDelayedTask(task Task, delay time.Duration) {
	r.PostDelayedTaskWithTraits(task, delay, DefaultTaskTraits())
}

func (r *ServiceThread) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if r.closed.Load() {
		return
	}
	if delay <= 0 {
		r.PostTaskWithTraits(task, traits)
		return
	}

	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	if r.closed.Load() {
		return
	}

	id := r.nextTimerID
	r.nextTimerID++
	r.timers[id] = time.AfterFunc(delay, func() {
		r.timersMu.Lock()
		delete(r.timers, id)
		r.timersMu.Unlock()

		r.PostTaskWithTraits(task, traits)
	})
}

// PendingTimerCount returns the number of armed timers that have not fired.
func (r *ServiceThread) PendingTimerCount() int {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()
	return len(r.timers)
}

// IsClosed returns true if the service thread has been stopped
func (r *ServiceThread) IsClosed() bool {
	return r.closed.Load()
}

// Stop cancels every pending timer, stops the loop and waits for the
// current task to finish.
func (r *ServiceThread) Stop() {
	r.once.Do(func() {
		r.timersMu.Lock()
		r.closed.Store(true)
		for id, timer := range r.timers {
			timer.Stop()
			delete(r.timers, id)
		}
		r.timersMu.Unlock()

		r.cancel()
		<-r.stopped
	})
}

// WaitIdle blocks until all currently queued tasks have completed.
// Timers that have not fired yet are not waited for.
func (r *ServiceThread) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return fmt.Errorf("service thread %s is closed", r.name)
	}

	done := make(chan struct{})
	r.PostTask(func(context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop occupies the dedicated goroutine
func (r *ServiceThread) runLoop() {
	defer close(r.stopped)

	runCtx := withTaskRunner(r.ctx, r)

	for {
		select {
		case task := <-r.workQueue:
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						r.logger.Error("service thread task panicked",
							F("thread", r.name),
							F("panic", rec),
							F("stack", string(debug.Stack())))
					}
				}()
				task(runCtx)
			}()

		case <-r.ctx.Done():
			return
		}
	}
}
