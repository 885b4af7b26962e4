package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingRunner is a TaskRunner that records delayed posts instead of
// arming timers. Tests fire the recorded tasks by hand.
type recordingRunner struct {
	mu     sync.Mutex
	delays []time.Duration
	tasks  []Task
}

func (r *recordingRunner) PostTask(task Task) { r.PostDelayedTask(task, 0) }

func (r *recordingRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.PostDelayedTask(task, 0)
}

func (r *recordingRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delay)
	r.tasks = append(r.tasks, task)
}

func (r *recordingRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	r.PostDelayedTask(task, delay)
}

func (r *recordingRunner) recorded() ([]time.Duration, []Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...), append([]Task(nil), r.tasks...)
}

func newDelayedTask(delay time.Duration) *PendingTask {
	return NewPendingTask(Here(0), func(ctx context.Context) {}, DefaultTaskTraits(), delay)
}

// TestDelayedTaskManager_ReplaysRemainingDelay verifies buffered tasks keep their deadline
// Given: a 500ms task added before Start and a clock advanced by 200ms
// When: Start is called
// Then: the timer is armed with the remaining 300ms
func TestDelayedTaskManager_ReplaysRemainingDelay(t *testing.T) {
	// Arrange
	clock := NewManualTickClock(time.Unix(0, 0))
	dm := NewDelayedTaskManager(clock, nil)
	runner := &recordingRunner{}
	task := newDelayedTask(500 * time.Millisecond)
	dm.AddDelayedTask(task, func(*PendingTask) {})
	clock.Advance(200 * time.Millisecond)

	if dm.PendingCount() != 1 {
		t.Fatalf("expected 1 buffered task, got %d", dm.PendingCount())
	}

	// Act
	dm.Start(runner)

	// Assert
	delays, _ := runner.recorded()
	if len(delays) != 1 || delays[0] != 300*time.Millisecond {
		t.Fatalf("expected one timer of 300ms, got %v", delays)
	}
	if dm.PendingCount() != 0 {
		t.Errorf("expected buffer to be empty after Start, got %d", dm.PendingCount())
	}
	if want := time.Unix(0, 0).Add(500 * time.Millisecond); !task.DelayedRunTime.Equal(want) {
		t.Errorf("expected DelayedRunTime %v, got %v", want, task.DelayedRunTime)
	}
}

// TestDelayedTaskManager_ExpiredBeforeStart verifies overdue tasks are armed with zero delay
func TestDelayedTaskManager_ExpiredBeforeStart(t *testing.T) {
	clock := NewManualTickClock(time.Unix(0, 0))
	dm := NewDelayedTaskManager(clock, nil)
	runner := &recordingRunner{}
	dm.AddDelayedTask(newDelayedTask(100*time.Millisecond), func(*PendingTask) {})
	clock.Advance(time.Second)

	dm.Start(runner)

	delays, _ := runner.recorded()
	if len(delays) != 1 || delays[0] != 0 {
		t.Fatalf("expected one timer of 0s, got %v", delays)
	}
}

// TestDelayedTaskManager_ReplayOrder verifies buffered tasks are armed in insertion order
func TestDelayedTaskManager_ReplayOrder(t *testing.T) {
	clock := NewManualTickClock(time.Unix(0, 0))
	dm := NewDelayedTaskManager(clock, nil)
	runner := &recordingRunner{}

	dm.AddDelayedTask(newDelayedTask(30*time.Millisecond), func(*PendingTask) {})
	dm.AddDelayedTask(newDelayedTask(10*time.Millisecond), func(*PendingTask) {})
	dm.AddDelayedTask(newDelayedTask(20*time.Millisecond), func(*PendingTask) {})
	dm.Start(runner)

	delays, _ := runner.recorded()
	want := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, delays)
		}
	}
}

// TestDelayedTaskManager_FastPathAfterStart verifies tasks added after Start are armed immediately
// Given: a started manager
// When: a delayed task is added and its timer fires
// Then: the timer uses the full delay and the callback receives the same task
func TestDelayedTaskManager_FastPathAfterStart(t *testing.T) {
	// Arrange
	clock := NewManualTickClock(time.Unix(0, 0))
	dm := NewDelayedTaskManager(clock, nil)
	runner := &recordingRunner{}
	dm.Start(runner)

	task := newDelayedTask(250 * time.Millisecond)
	var got *PendingTask

	// Act
	dm.AddDelayedTask(task, func(p *PendingTask) { got = p })
	delays, tasks := runner.recorded()
	tasks[0](context.Background())

	// Assert
	if dm.PendingCount() != 0 {
		t.Errorf("expected nothing buffered, got %d", dm.PendingCount())
	}
	if len(delays) != 1 || delays[0] != 250*time.Millisecond {
		t.Errorf("expected one timer of 250ms, got %v", delays)
	}
	if got != task {
		t.Error("callback should receive the added task")
	}
	if !dm.Started() {
		t.Error("manager should report started")
	}
}

// TestDelayedTaskManager_ConcurrentAddDuringStart verifies no task is lost
// when Start races with AddDelayedTask
func TestDelayedTaskManager_ConcurrentAddDuringStart(t *testing.T) {
	dm := NewDelayedTaskManager(nil, nil)
	runner := &recordingRunner{}
	const adders = 8
	const perAdder = 50

	var wg sync.WaitGroup
	for range adders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perAdder {
				dm.AddDelayedTask(newDelayedTask(time.Hour), func(*PendingTask) {})
			}
		}()
	}
	dm.Start(runner)
	wg.Wait()

	delays, _ := runner.recorded()
	if len(delays) != adders*perAdder {
		t.Errorf("expected %d armed timers, got %d", adders*perAdder, len(delays))
	}
}

// TestDelayedTaskManager_ContractViolationsPanic verifies misuse panics
func TestDelayedTaskManager_ContractViolationsPanic(t *testing.T) {
	expectPanic(t, "nil runner", func() {
		NewDelayedTaskManager(nil, nil).Start(nil)
	})
	expectPanic(t, "double start", func() {
		dm := NewDelayedTaskManager(nil, nil)
		dm.Start(&recordingRunner{})
		dm.Start(&recordingRunner{})
	})
	expectPanic(t, "zero delay", func() {
		NewDelayedTaskManager(nil, nil).AddDelayedTask(newDelayedTask(0), func(*PendingTask) {})
	})
	expectPanic(t, "nil task", func() {
		NewDelayedTaskManager(nil, nil).AddDelayedTask(nil, func(*PendingTask) {})
	})
	expectPanic(t, "nil callback", func() {
		NewDelayedTaskManager(nil, nil).AddDelayedTask(newDelayedTask(time.Second), nil)
	})
}

// TestDelayedTaskManager_DemotesBlockShutdown verifies a delayed task never keeps BlockShutdown
func TestDelayedTaskManager_DemotesBlockShutdown(t *testing.T) {
	dm := NewDelayedTaskManager(nil, nil)
	task := &PendingTask{
		Task:   func(ctx context.Context) {},
		Traits: DefaultTaskTraits().WithShutdownBehavior(BlockShutdown),
		Delay:  time.Second,
	}

	dm.AddDelayedTask(task, func(*PendingTask) {})

	if task.Traits.ShutdownBehavior != SkipOnShutdown {
		t.Errorf("expected SkipOnShutdown, got %v", task.Traits.ShutdownBehavior)
	}
}

// TestDelayedTaskManager_WithServiceThread verifies delayed tasks fire through a real service thread
func TestDelayedTaskManager_WithServiceThread(t *testing.T) {
	thread := NewServiceThread("delay-test", nil)
	defer thread.Stop()
	dm := NewDelayedTaskManager(nil, nil)

	fired := make(chan *PendingTask, 1)
	task := newDelayedTask(20 * time.Millisecond)
	dm.AddDelayedTask(task, func(p *PendingTask) { fired <- p })
	start := time.Now()
	dm.Start(thread)

	select {
	case got := <-fired:
		if got != task {
			t.Error("callback received a different task")
		}
		if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
			t.Errorf("task fired too early: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("delayed task never fired")
	}
}
