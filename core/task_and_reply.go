package core

import (
	"context"
	"time"
)

// TaskWithResult is a task that produces a value for its reply.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult receives the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// postTaskAndReplyInternal runs task on targetRunner and, once it returns
// normally, posts reply to replyRunner. A panicking task never gets its
// reply; the panic reaches the worker's PanicHandler unchanged.
func postTaskAndReplyInternal(
	targetRunner TaskRunner,
	task Task,
	taskTraits TaskTraits,
	reply Task,
	replyTraits TaskTraits,
	replyRunner TaskRunner,
	delay time.Duration,
) {
	wrapped := task
	if replyRunner != nil {
		wrapped = func(ctx context.Context) {
			task(ctx)
			replyRunner.PostTaskWithTraits(reply, replyTraits)
		}
	}

	if delay > 0 {
		targetRunner.PostDelayedTaskWithTraits(wrapped, delay, taskTraits)
		return
	}
	targetRunner.PostTaskWithTraits(wrapped, taskTraits)
}

// PostTaskAndReply runs task on targetRunner, then reply on replyRunner.
func PostTaskAndReply(targetRunner TaskRunner, task Task, reply Task, replyRunner TaskRunner) {
	postTaskAndReplyInternal(targetRunner, task, DefaultTaskTraits(), reply, DefaultTaskTraits(), replyRunner, 0)
}

// PostTaskAndReplyWithTraits allows different traits for task and reply,
// e.g. BestEffort background work followed by a UserVisible reply.
func PostTaskAndReplyWithTraits(
	targetRunner TaskRunner,
	task Task,
	taskTraits TaskTraits,
	reply Task,
	replyTraits TaskTraits,
	replyRunner TaskRunner,
) {
	postTaskAndReplyInternal(targetRunner, task, taskTraits, reply, replyTraits, replyRunner, 0)
}

// PostTaskAndReplyWithResult executes a task that returns a result of type T and an error,
// then passes that result to a reply callback on the replyRunner.
//
// The reply is posted from inside the task after the result is written, so
// the reply always observes the final values.
//
// Example:
//
//	PostTaskAndReplyWithResult(
//	    backgroundRunner,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    },
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    },
//	    uiRunner,
//	)
func PostTaskAndReplyWithResult[T any](
	targetRunner TaskRunner,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyRunner TaskRunner,
) {
	PostDelayedTaskAndReplyWithResultAndTraits(targetRunner, task, 0, DefaultTaskTraits(), reply, DefaultTaskTraits(), replyRunner)
}

// PostDelayedTaskAndReplyWithResultAndTraits delays only the task; the
// reply is posted as soon as the task returns.
func PostDelayedTaskAndReplyWithResultAndTraits[T any](
	targetRunner TaskRunner,
	task TaskWithResult[T],
	delay time.Duration,
	taskTraits TaskTraits,
	reply ReplyWithResult[T],
	replyTraits TaskTraits,
	replyRunner TaskRunner,
) {
	var result T
	var err error

	wrappedTask := func(ctx context.Context) {
		result, err = task(ctx)
	}
	wrappedReply := func(ctx context.Context) {
		reply(ctx, result, err)
	}

	postTaskAndReplyInternal(targetRunner, wrappedTask, taskTraits, wrappedReply, replyTraits, replyRunner, delay)
}
