package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - task: The task that panicked; PostedFrom tells where it came from
	// - workerID: The ID of the worker that ran the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, task *PendingTask, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, task *PendingTask, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewNoOpLogger()
	}
	fields := []Field{
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	}
	if task != nil {
		fields = append(fields, F("task_id", task.ID.String()), F("posted_from", task.PostedFrom.String()))
	}
	logger.Error("task panicked", fields...)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(poolName string, priority TaskPriority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(poolName string, panicInfo any)

	// RecordQueueDepth records how many sequences are waiting in the PriorityQueue.
	RecordQueueDepth(poolName string, depth int)

	// RecordTaskRejected records that a task was rejected or skipped (e.g., during shutdown).
	RecordTaskRejected(poolName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(poolName string, priority TaskPriority, duration time.Duration) {
}

func (m *NilMetrics) RecordTaskPanic(poolName string, panicInfo any) {
}

func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {
}

func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {
}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected by the scheduler.
// This can happen when:
// - The scheduler is shutting down and the task does not block shutdown
// - A SkipOnShutdown task is dequeued after shutdown started
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(task *PendingTask, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(task *PendingTask, reason string) {
	if h.Logger == nil {
		return
	}
	fields := []Field{F("reason", reason)}
	if task != nil {
		fields = append(fields, F("task_id", task.ID.String()), F("posted_from", task.PostedFrom.String()))
	}
	h.Logger.Warn("task rejected", fields...)
}

// =============================================================================
// ThreadPool: what runners need from the pool that executes their sequences
// =============================================================================

// ThreadPool accepts tasks for a given Sequence.
type ThreadPool interface {
	// PostTaskInSequence posts task into seq. Delayed tasks wait in the
	// DelayedTaskManager first. Returns false if the task was rejected.
	PostTaskInSequence(task *PendingTask, seq *Sequence) bool

	// Clock is the tick clock sequences of this pool must use.
	Clock() TickClock

	ID() string
}

// =============================================================================
// TaskSchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// DefaultSchedulerName labels a scheduler whose config sets no Name.
const DefaultSchedulerName = "TaskScheduler"

// TaskSchedulerConfig holds configuration options for TaskScheduler.
// All fields are optional; nil fields get default implementations.
type TaskSchedulerConfig struct {
	// Name labels logs and metrics. Defaults to DefaultSchedulerName.
	Name string

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Logger defaults to NoOpLogger.
	Logger Logger

	// Clock defaults to DefaultTickClock.
	Clock TickClock
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	logger := NewNoOpLogger()
	return &TaskSchedulerConfig{
		Name:                DefaultSchedulerName,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
		Logger:              logger,
		Clock:               DefaultTickClock{},
	}
}
