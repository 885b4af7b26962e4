package core

import (
	"context"
	"testing"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	if q.front() != nil || q.pop() != nil {
		t.Fatal("empty queue should return nil")
	}

	a := NewPendingTask(Here(0), func(ctx context.Context) {}, DefaultTaskTraits(), 0)
	b := NewPendingTask(Here(0), func(ctx context.Context) {}, DefaultTaskTraits(), 0)
	q.push(a)
	q.push(b)

	if q.front() != a {
		t.Error("front should be the first pushed task")
	}
	if q.pop() != a || q.pop() != b {
		t.Error("pop should return tasks in push order")
	}
	if q.len() != 0 {
		t.Errorf("expected empty queue, got %d", q.len())
	}
}

// TestTaskQueue_Compaction verifies the backing array shrinks after draining
func TestTaskQueue_Compaction(t *testing.T) {
	q := newTaskQueue()
	for range 1000 {
		q.push(NewPendingTask(Here(0), func(ctx context.Context) {}, DefaultTaskTraits(), 0))
	}
	for range 990 {
		q.pop()
	}

	if q.len() != 10 {
		t.Fatalf("expected 10 tasks, got %d", q.len())
	}
	if c := cap(q.tasks); c >= 1000 {
		t.Errorf("expected compaction below 1000, got cap %d", c)
	}
}
