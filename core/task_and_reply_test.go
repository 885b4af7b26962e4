package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Swind/go-task-scheduler/core"
)

// TestPostTaskAndReply_ReplyRunsOnReplyRunner verifies the reply follows the task on the reply runner
// Given: a background runner and a reply runner
// When: PostTaskAndReply is used
// Then: the task runs first on the background runner and the reply on the reply runner
func TestPostTaskAndReply_ReplyRunsOnReplyRunner(t *testing.T) {
	// Arrange
	pool := newStartedPool(t, 2)
	background := core.NewSequencedTaskRunner(pool)
	reply := core.NewSequencedTaskRunner(pool)

	taskDone := make(chan struct{})
	replyRunner := make(chan core.TaskRunner, 1)

	// Act
	background.PostTaskAndReply(
		func(ctx context.Context) { close(taskDone) },
		func(ctx context.Context) {
			select {
			case <-taskDone:
			default:
				t.Error("reply ran before task")
			}
			replyRunner <- core.GetCurrentTaskRunner(ctx)
		},
		reply,
	)

	// Assert
	select {
	case r := <-replyRunner:
		if r != core.TaskRunner(reply) {
			t.Error("reply should run on the reply runner")
		}
	case <-time.After(time.Second):
		t.Fatal("reply never ran")
	}
}

// TestPostTaskAndReplyWithResult verifies the reply observes the task's result
func TestPostTaskAndReplyWithResult(t *testing.T) {
	pool := newStartedPool(t, 2)
	background := core.NewSequencedTaskRunner(pool)
	reply := core.NewSequencedTaskRunner(pool)

	errNotFound := errors.New("not found")
	type outcome struct {
		n   int
		err error
	}
	got := make(chan outcome, 1)

	core.PostTaskAndReplyWithResult(background,
		func(ctx context.Context) (int, error) { return 42, errNotFound },
		func(ctx context.Context, n int, err error) { got <- outcome{n, err} },
		reply,
	)

	select {
	case o := <-got:
		if o.n != 42 || !errors.Is(o.err, errNotFound) {
			t.Errorf("expected (42, not found), got (%d, %v)", o.n, o.err)
		}
	case <-time.After(time.Second):
		t.Fatal("reply never ran")
	}
}

// TestPostTaskAndReply_PanicSkipsReply verifies a panicking task never triggers its reply
func TestPostTaskAndReply_PanicSkipsReply(t *testing.T) {
	pool := newStartedPool(t, 1)
	background := core.NewSequencedTaskRunner(pool)

	replied := make(chan struct{}, 1)
	core.PostTaskAndReplyWithTraits(background,
		func(ctx context.Context) { panic("task failed") },
		core.TraitsBestEffort(),
		func(ctx context.Context) { replied <- struct{}{} },
		core.TraitsUserVisible(),
		background,
	)

	// A follow-up task proves the worker survived the panic
	followUp := make(chan struct{})
	background.PostTask(func(ctx context.Context) { close(followUp) })
	<-followUp

	select {
	case <-replied:
		t.Error("reply ran after the task panicked")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestPostDelayedTaskAndReplyWithResultAndTraits(t *testing.T) {
	pool := newStartedPool(t, 2)
	runner := core.NewParallelTaskRunner(pool, "delayed-reply")

	start := time.Now()
	got := make(chan time.Duration, 1)
	core.PostDelayedTaskAndReplyWithResultAndTraits(runner,
		func(ctx context.Context) (string, error) { return "ok", nil },
		20*time.Millisecond,
		core.TraitsBestEffort(),
		func(ctx context.Context, s string, err error) {
			if s != "ok" || err != nil {
				t.Errorf("unexpected result (%q, %v)", s, err)
			}
			got <- time.Since(start)
		},
		core.TraitsUserBlocking(),
		runner,
	)

	select {
	case elapsed := <-got:
		if elapsed < 15*time.Millisecond {
			t.Errorf("task was not delayed: %v", elapsed)
		}
	case <-time.After(time.Second):
		t.Fatal("reply never ran")
	}
}
