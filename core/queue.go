package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// taskQueue is the FIFO backing a Sequence. It has no lock of its own;
// the owning Sequence serializes access.
type taskQueue struct {
	tasks []*PendingTask
}

func newTaskQueue() taskQueue {
	return taskQueue{tasks: make([]*PendingTask, 0, defaultQueueCap)}
}

func (q *taskQueue) push(t *PendingTask) {
	q.tasks = append(q.tasks, t)
}

func (q *taskQueue) front() *PendingTask {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

func (q *taskQueue) pop() *PendingTask {
	if len(q.tasks) == 0 {
		return nil
	}

	t := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.maybeCompact()
	return t
}

func (q *taskQueue) len() int { return len(q.tasks) }

func (q *taskQueue) clear() []*PendingTask {
	dropped := q.tasks
	q.tasks = make([]*PendingTask, 0, defaultQueueCap)
	return dropped
}

func (q *taskQueue) maybeCompact() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]*PendingTask, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*PendingTask, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}
