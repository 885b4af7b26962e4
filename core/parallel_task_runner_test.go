package core_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-task-scheduler/core"
)

// TestParallelTaskRunner_RunsConcurrently verifies tasks of a parallel runner may overlap
// Given: a parallel runner on a 4-worker pool
// When: 4 tasks that wait for each other are posted
// Then: all of them are running at the same time
func TestParallelTaskRunner_RunsConcurrently(t *testing.T) {
	// Arrange
	pool := newStartedPool(t, 4)
	runner := core.NewParallelTaskRunner(pool, "parallel-test")

	var arrived sync.WaitGroup
	arrived.Add(4)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	// Act
	for range 4 {
		runner.PostTask(func(ctx context.Context) {
			arrived.Done()
			<-allArrived
		})
	}

	// Assert
	select {
	case <-allArrived:
	case <-time.After(time.Second):
		t.Fatal("parallel tasks did not run concurrently")
	}
}

func TestParallelTaskRunner_ShutdownAndContext(t *testing.T) {
	pool := newStartedPool(t, 2)
	runner := core.NewParallelTaskRunner(pool, "")

	if runner.Name() != "parallel" {
		t.Errorf("expected default name 'parallel', got %s", runner.Name())
	}

	got := make(chan core.TaskRunner, 1)
	runner.PostTask(func(ctx context.Context) { got <- core.GetCurrentTaskRunner(ctx) })
	if r := <-got; r != core.TaskRunner(runner) {
		t.Error("expected parallel runner in context")
	}

	runner.Shutdown()
	var ran atomic.Bool
	runner.PostDelayedTask(func(ctx context.Context) { ran.Store(true) }, time.Millisecond)
	runner.PostTask(func(ctx context.Context) { ran.Store(true) })
	time.Sleep(30 * time.Millisecond)

	if !runner.IsClosed() || ran.Load() {
		t.Error("closed runner should drop new tasks")
	}
}
