// Package taskscheduler provides a Chromium-inspired priority task scheduler for Go.
//
// Developers post tasks to virtual threads (TaskRunners) rather than managing
// goroutines directly. Each runner owns one or more Sequences; a worker pool
// repeatedly takes the most important ready Sequence from a shared
// PriorityQueue, runs its head task, and pushes the Sequence back if it still
// has work.
//
// # Quick Start
//
// Initialize the global thread pool at application startup:
//
//	taskscheduler.InitGlobalThreadPool(4) // 4 workers
//	defer taskscheduler.ShutdownGlobalThreadPool()
//
// Create a SequencedTaskRunner for sequential task execution:
//
//	runner := taskscheduler.CreateTaskRunner(taskscheduler.DefaultTaskTraits())
//	runner.PostTask(func(ctx context.Context) {
//		// Your code here - guaranteed sequential execution
//	})
//
// # Key Concepts
//
// Sequence: an ordered queue of tasks that never run concurrently. Its sort
// key is the priority of its head task plus the time that task entered the
// sequence.
//
// PriorityQueue: the shared container of ready sequences. All access goes
// through a Transaction that holds the queue lock until Close. Higher
// priority wins; among equal priorities the task that has waited longest
// wins.
//
// DelayedTaskManager: holds delayed tasks until their delay expires, then
// posts them into their sequence. Tasks added before the scheduler starts are
// buffered and armed with their remaining delay at Start.
//
// TaskTraits: priority (BestEffort, UserVisible, UserBlocking) and shutdown
// behavior. Priority decides when a sequence is scheduled, not the order
// within a sequence.
//
// # Shutdown
//
// After Stop or StopGraceful begins, only BlockShutdown tasks are accepted.
// Queued SkipOnShutdown tasks are skipped; ContinueOnShutdown and
// BlockShutdown tasks still run while the pool drains.
//
// # Example
//
//	import (
//		"context"
//		taskscheduler "github.com/Swind/go-task-scheduler"
//	)
//
//	func main() {
//		taskscheduler.InitGlobalThreadPool(4)
//		defer taskscheduler.ShutdownGlobalThreadPool()
//
//		runner := taskscheduler.CreateTaskRunner(taskscheduler.DefaultTaskTraits())
//
//		runner.PostTaskWithTraits(func(ctx context.Context) {
//			println("urgent")
//		}, taskscheduler.TraitsUserBlocking())
//
//		runner.PostDelayedTask(func(ctx context.Context) {
//			println("later")
//		}, 1*time.Second)
//	}
package taskscheduler
