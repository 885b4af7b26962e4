package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	PostedFrom Location
	Priority   TaskPriority
	WorkerID   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name    string
	Type    string
	Pending int
	Closed  bool
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID       string
	Workers  int
	Queued   int // sequences waiting in the PriorityQueue
	Active   int
	Delayed  int // armed timers plus tasks buffered before start
	Rejected int64
	Running  bool
}
