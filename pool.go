package taskscheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-scheduler/core"
)

// GoroutineThreadPool manages a set of worker goroutines.
// Each worker pops the most important ready Sequence from the scheduler,
// runs its head task, and lets the scheduler push the sequence back.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	logger    core.Logger
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

// NewGoroutineThreadPool creates a new GoroutineThreadPool with default handlers.
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses config.
// config.Name defaults to id.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	cfg := core.TaskSchedulerConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Name == "" || cfg.Name == core.DefaultSchedulerName {
		cfg.Name = id
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewTaskScheduler(workers, &cfg),
		logger:    logger,
	}
}

// Start starts the scheduler's service thread and all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.scheduler.Start()
	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
	tg.logger.Info("thread pool started", core.F("pool", tg.id), core.F("workers", tg.workers))
}

// Stop stops the thread pool, dropping queued work
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to clean up resources (queue, delayed tasks)
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	tg.stopWorkers()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		tg.scheduler.Shutdown()
		return nil
	}
	tg.runningMu.Unlock()

	err := tg.scheduler.ShutdownGraceful(timeout)

	// Cancel workers whether or not the queue drained
	tg.stopWorkers()
	if err != nil {
		tg.logger.Warn("thread pool stopped before draining", core.F("pool", tg.id), core.F("error", err))
	}
	return err
}

func (tg *GoroutineThreadPool) stopWorkers() {
	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
	tg.logger.Info("thread pool stopped", core.F("pool", tg.id))
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	for {
		seq, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// context canceled
			return
		}
		// Panics are recovered inside RunTask and reported to the PanicHandler
		tg.scheduler.RunTask(ctx, id, seq)
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedSequenceCount() int {
	return tg.scheduler.QueuedSequenceCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

func (tg *GoroutineThreadPool) DelayedTaskCount() int {
	return tg.scheduler.DelayedTaskCount()
}

// Scheduler exposes the underlying scheduler, e.g. for execution history.
func (tg *GoroutineThreadPool) Scheduler() *core.TaskScheduler {
	return tg.scheduler
}

// Stats returns a snapshot of the pool's counters.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:       tg.id,
		Workers:  tg.workers,
		Queued:   tg.QueuedSequenceCount(),
		Active:   tg.ActiveTaskCount(),
		Delayed:  tg.DelayedTaskCount(),
		Rejected: tg.scheduler.RejectedTaskCount(),
		Running:  tg.IsRunning(),
	}
}

func (tg *GoroutineThreadPool) PostTaskInSequence(task *core.PendingTask, seq *core.Sequence) bool {
	return tg.scheduler.PostTaskInSequence(task, seq)
}

func (tg *GoroutineThreadPool) Clock() core.TickClock {
	return tg.scheduler.Clock()
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// CreateTaskRunner creates a new SequencedTaskRunner using the global thread pool.
// traits become the runner's default for posts that take none.
func CreateTaskRunner(traits TaskTraits) *SequencedTaskRunner {
	return core.NewSequencedTaskRunnerWithTraits(GetGlobalThreadPool(), traits)
}

// CreateParallelTaskRunner creates a ParallelTaskRunner using the global thread pool.
func CreateParallelTaskRunner(name string) *ParallelTaskRunner {
	return core.NewParallelTaskRunner(GetGlobalThreadPool(), name)
}
