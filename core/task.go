package core

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskTraits: Define task attributes (priority, shutdown behavior, etc.)
// =============================================================================

// TaskPriority orders sequences in the PriorityQueue.
// A higher numeric value is served first.
type TaskPriority int

const (
	// TaskPriorityBestEffort: Lowest priority
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: Default priority
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: Highest priority
	// `UserBlocking` means the task may block the main thread.
	// If main thread is blocked, the UI will be unresponsive.
	TaskPriorityUserBlocking
)

func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityBestEffort:
		return "best_effort"
	case TaskPriorityUserVisible:
		return "user_visible"
	case TaskPriorityUserBlocking:
		return "user_blocking"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ShutdownBehavior decides what happens to a task once shutdown has started.
type ShutdownBehavior int

const (
	// SkipOnShutdown tasks that have not started when shutdown begins are dropped.
	// Tasks already running are waited for.
	SkipOnShutdown ShutdownBehavior = iota

	// ContinueOnShutdown tasks keep running during shutdown and are never waited for.
	ContinueOnShutdown

	// BlockShutdown tasks may still be posted after shutdown starts and
	// shutdown waits for them.
	BlockShutdown
)

func (b ShutdownBehavior) String() string {
	switch b {
	case SkipOnShutdown:
		return "skip_on_shutdown"
	case ContinueOnShutdown:
		return "continue_on_shutdown"
	case BlockShutdown:
		return "block_shutdown"
	default:
		return fmt.Sprintf("shutdown_behavior(%d)", int(b))
	}
}

type TaskTraits struct {
	Priority         TaskPriority
	ShutdownBehavior ShutdownBehavior
	MayBlock         bool
	Category         string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsUserBlocking() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserBlocking}
}

func TraitsBestEffort() TaskTraits {
	return TaskTraits{Priority: TaskPriorityBestEffort}
}

func TraitsUserVisible() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

// WithShutdownBehavior returns a copy of the traits with the given shutdown behavior.
func (t TaskTraits) WithShutdownBehavior(b ShutdownBehavior) TaskTraits {
	t.ShutdownBehavior = b
	return t
}

// =============================================================================
// Location: where a task was posted from
// =============================================================================

// Location identifies the call site that posted a task. Diagnostics only.
type Location struct {
	Function string
	File     string
	Line     int
}

// Here returns the Location of its caller's caller, skipping `skip` extra frames.
func Here(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{Function: "unknown"}
	}
	loc := Location{File: filepath.Base(file), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

func (l Location) String() string {
	if l.File == "" {
		return l.Function
	}
	return fmt.Sprintf("%s@%s:%d", l.Function, l.File, l.Line)
}

// =============================================================================
// PendingTask: a Task plus everything the scheduler needs to order it
// =============================================================================

// PendingTask is a posted Task on its way through the scheduler.
//
// It is owned by the DelayedTaskManager while its delay runs, then by a
// Sequence, and finally by the worker that executes it.
type PendingTask struct {
	ID         TaskID
	Task       Task
	PostedFrom Location
	Traits     TaskTraits

	// Delay is the time to wait before the task becomes eligible.
	Delay time.Duration

	// DelayedRunTime is the tick at which a delayed task becomes eligible.
	// Zero for immediate tasks until the DelayedTaskManager stamps it.
	DelayedRunTime time.Time

	// SequencedTime is set when the task is pushed into a Sequence.
	SequencedTime time.Time
}

// NewPendingTask builds a PendingTask. A delayed task never blocks shutdown:
// BlockShutdown is coerced to SkipOnShutdown when delay is non-zero.
func NewPendingTask(from Location, task Task, traits TaskTraits, delay time.Duration) *PendingTask {
	p := &PendingTask{
		ID:         GenerateTaskID(),
		Task:       task,
		PostedFrom: from,
		Traits:     traits,
		Delay:      delay,
	}
	p.demoteDelayedBlockShutdown()
	return p
}

// demoteDelayedBlockShutdown turns BlockShutdown into SkipOnShutdown for a
// delayed task. Applied again on every delayed post, since PendingTask
// literals skip NewPendingTask.
func (p *PendingTask) demoteDelayedBlockShutdown() {
	if p.Delay > 0 && p.Traits.ShutdownBehavior == BlockShutdown {
		p.Traits.ShutdownBehavior = SkipOnShutdown
	}
}

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================
type TaskRunner interface {
	PostTask(task Task)
	PostTaskWithTraits(task Task, traits TaskTraits)
	PostDelayedTask(task Task, delay time.Duration)
	PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits)
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}

func withTaskRunner(ctx context.Context, r TaskRunner) context.Context {
	return context.WithValue(ctx, taskRunnerKey, r)
}
