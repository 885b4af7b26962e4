package core

import (
	"context"
	"testing"
	"time"
)

func newTestTask(traits TaskTraits) *PendingTask {
	return NewPendingTask(Here(0), func(ctx context.Context) {}, traits, 0)
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

// TestSequence_PushTaskReportsFirstTask verifies only the first push asks for scheduling
// Given: an empty sequence
// When: two tasks are pushed
// Then: the first push returns true, the second false
func TestSequence_PushTaskReportsFirstTask(t *testing.T) {
	// Arrange
	clock := NewManualTickClock(time.Unix(0, 0))
	seq := NewSequence(clock)

	// Act
	first := seq.PushTask(newTestTask(DefaultTaskTraits()))
	clock.Advance(time.Second)
	second := seq.PushTask(newTestTask(TraitsUserBlocking()))

	// Assert
	if !first {
		t.Error("first PushTask should return true")
	}
	if second {
		t.Error("second PushTask should return false")
	}
	if seq.Len() != 2 {
		t.Errorf("expected 2 tasks, got %d", seq.Len())
	}
}

// TestSequence_SortKeyFollowsHeadTask verifies the sort key tracks the head task
// Given: a sequence with a UserVisible task at t=0 and a UserBlocking task at t=1s
// When: the head task is taken
// Then: the key changes from the first task's to the second task's
func TestSequence_SortKeyFollowsHeadTask(t *testing.T) {
	// Arrange
	start := time.Unix(100, 0)
	clock := NewManualTickClock(start)
	seq := NewSequence(clock)
	seq.PushTask(newTestTask(DefaultTaskTraits()))
	clock.Advance(time.Second)
	seq.PushTask(newTestTask(TraitsUserBlocking()))

	// Assert initial key
	want := NewSequenceSortKey(TaskPriorityUserVisible, start)
	if got := seq.GetSortKey(); !got.Equal(want) {
		t.Fatalf("expected key %v, got %v", want, got)
	}

	// Act
	task := seq.TakeTask()

	// Assert
	if !task.SequencedTime.Equal(start) {
		t.Errorf("expected SequencedTime %v, got %v", start, task.SequencedTime)
	}
	want = NewSequenceSortKey(TaskPriorityUserBlocking, start.Add(time.Second))
	if got := seq.GetSortKey(); !got.Equal(want) {
		t.Errorf("expected key %v, got %v", want, got)
	}
}

// TestSequence_InFlightSuppressesScheduling verifies a running sequence is not rescheduled by producers
// Given: a sequence whose only task has been taken
// When: a producer pushes a new task
// Then: PushTask returns false and DidRunTask returns true so the worker re-pushes
func TestSequence_InFlightSuppressesScheduling(t *testing.T) {
	// Arrange
	seq := NewSequence(nil)
	seq.PushTask(newTestTask(DefaultTaskTraits()))
	seq.TakeTask()

	// Act
	pushed := seq.PushTask(newTestTask(DefaultTaskTraits()))
	again := seq.DidRunTask()

	// Assert
	if pushed {
		t.Error("PushTask during execution should not ask for scheduling")
	}
	if !again {
		t.Error("DidRunTask should report remaining work")
	}
}

// TestSequence_DidRunTaskOnEmpty verifies DidRunTask reports no remaining work
func TestSequence_DidRunTaskOnEmpty(t *testing.T) {
	seq := NewSequence(nil)
	seq.PushTask(newTestTask(DefaultTaskTraits()))
	seq.TakeTask()

	if seq.DidRunTask() {
		t.Error("DidRunTask should return false when the sequence is empty")
	}
	if !seq.Empty() {
		t.Error("sequence should be empty")
	}
	// After DidRunTask the next push schedules again
	if !seq.PushTask(newTestTask(DefaultTaskTraits())) {
		t.Error("PushTask after DidRunTask should return true")
	}
}

// TestSequence_FIFO verifies tasks come out in push order regardless of priority
func TestSequence_FIFO(t *testing.T) {
	seq := NewSequence(nil)
	tasks := []*PendingTask{
		newTestTask(TraitsBestEffort()),
		newTestTask(TraitsUserBlocking()),
		newTestTask(TraitsUserVisible()),
	}
	for _, task := range tasks {
		seq.PushTask(task)
	}

	for i, want := range tasks {
		got := seq.TakeTask()
		if got.ID != want.ID {
			t.Fatalf("task %d: expected %s, got %s", i, want.ID, got.ID)
		}
		seq.DidRunTask()
	}
}

// TestSequence_ContractViolationsPanic verifies misuse panics
func TestSequence_ContractViolationsPanic(t *testing.T) {
	expectPanic(t, "TakeTask on empty", func() {
		NewSequence(nil).TakeTask()
	})
	expectPanic(t, "GetSortKey on empty", func() {
		NewSequence(nil).GetSortKey()
	})
	expectPanic(t, "PushTask nil", func() {
		NewSequence(nil).PushTask(nil)
	})
	expectPanic(t, "DidRunTask without take", func() {
		NewSequence(nil).DidRunTask()
	})
	expectPanic(t, "TakeTask while in flight", func() {
		seq := NewSequence(nil)
		seq.PushTask(newTestTask(DefaultTaskTraits()))
		seq.PushTask(newTestTask(DefaultTaskTraits()))
		seq.TakeTask()
		seq.TakeTask()
	})
}

// TestSequence_Clear verifies clear drops all queued tasks
func TestSequence_Clear(t *testing.T) {
	seq := NewSequence(nil)
	seq.PushTask(newTestTask(DefaultTaskTraits()))
	seq.PushTask(newTestTask(DefaultTaskTraits()))

	dropped := seq.clear()

	if len(dropped) != 2 {
		t.Errorf("expected 2 dropped tasks, got %d", len(dropped))
	}
	if !seq.Empty() {
		t.Error("sequence should be empty after clear")
	}
}
