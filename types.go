package taskscheduler

import "github.com/Swind/go-task-scheduler/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskscheduler package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskTraits defines task attributes (priority, shutdown behavior, etc.)
type TaskTraits = core.TaskTraits

// TaskPriority defines the priority levels for tasks
type TaskPriority = core.TaskPriority

// ShutdownBehavior decides what happens to a task once shutdown starts
type ShutdownBehavior = core.ShutdownBehavior

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// SequencedTaskRunner runs its tasks one at a time in posting order
type SequencedTaskRunner = core.SequencedTaskRunner

// ParallelTaskRunner gives every task its own sequence
type ParallelTaskRunner = core.ParallelTaskRunner

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle = core.RepeatingTaskHandle

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Shutdown behavior constants
const (
	SkipOnShutdown     ShutdownBehavior = core.SkipOnShutdown
	ContinueOnShutdown ShutdownBehavior = core.ContinueOnShutdown
	BlockShutdown      ShutdownBehavior = core.BlockShutdown
)

// Convenience functions for creating TaskTraits
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible
)

// NewSequencedTaskRunner creates a new SequencedTaskRunner with the given thread pool.
// This is re-exported for advanced users who want to create runners with custom pools.
func NewSequencedTaskRunner(pool ThreadPool) *SequencedTaskRunner {
	return core.NewSequencedTaskRunner(pool)
}

// NewSequencedTaskRunnerWithTraits creates a runner whose posts without traits use traits.
func NewSequencedTaskRunnerWithTraits(pool ThreadPool, traits TaskTraits) *SequencedTaskRunner {
	return core.NewSequencedTaskRunnerWithTraits(pool, traits)
}

// NewParallelTaskRunner creates a ParallelTaskRunner on the given thread pool.
func NewParallelTaskRunner(pool ThreadPool, name string) *ParallelTaskRunner {
	return core.NewParallelTaskRunner(pool, name)
}

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// TaskWithResult and ReplyWithResult for generic PostTaskAndReply pattern
type TaskWithResult[T any] = core.TaskWithResult[T]
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner
