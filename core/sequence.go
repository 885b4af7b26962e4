package core

import (
	"sync"

	"github.com/google/uuid"
)

// Sequence is an ordered run of tasks from one producer context. Tasks run
// one at a time in FIFO order; the PriorityQueue decides when the sequence
// as a whole gets a worker.
//
// The Sequence lock only protects the task list. It is never held while a
// PriorityQueue Transaction is begun, so producers can keep appending while
// a worker drains the sequence.
type Sequence struct {
	token uuid.UUID
	clock TickClock

	mu       sync.Mutex
	queue    taskQueue
	inFlight bool
	sortKey  SequenceSortKey
}

// NewSequence creates an empty Sequence. A nil clock uses DefaultTickClock.
func NewSequence(clock TickClock) *Sequence {
	if clock == nil {
		clock = DefaultTickClock{}
	}
	return &Sequence{
		token: uuid.New(),
		clock: clock,
		queue: newTaskQueue(),
	}
}

// Token identifies the sequence in logs.
func (s *Sequence) Token() string {
	return s.token.String()
}

// PushTask stamps the task's SequencedTime and appends it. It returns true
// when the caller must push the sequence into the PriorityQueue: the
// sequence was empty and no task taken from it is still running.
func (s *Sequence) PushTask(task *PendingTask) bool {
	if task == nil || task.Task == nil {
		panic("Sequence: PushTask called with an empty task")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task.SequencedTime = s.clock.NowTicks()
	s.queue.push(task)
	if s.queue.len() == 1 {
		s.refreshSortKeyLocked()
	}
	return s.queue.len() == 1 && !s.inFlight
}

// TakeTask removes the head task for execution and marks the sequence as
// having a task in flight until DidRunTask is called.
// Callers must only take from a sequence they popped from the PriorityQueue.
func (s *Sequence) TakeTask() *PendingTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.len() == 0 {
		panic("Sequence: TakeTask called on an empty sequence")
	}
	if s.inFlight {
		panic("Sequence: TakeTask called while a task is in flight")
	}

	task := s.queue.pop()
	s.inFlight = true
	if s.queue.len() > 0 {
		s.refreshSortKeyLocked()
	}
	return task
}

// DidRunTask clears the in-flight mark. It returns true if tasks remain and
// the worker must push the sequence back with a fresh sort key.
func (s *Sequence) DidRunTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inFlight {
		panic("Sequence: DidRunTask called without a task in flight")
	}
	s.inFlight = false
	return s.queue.len() > 0
}

// GetSortKey returns the key for the current head task.
func (s *Sequence) GetSortKey() SequenceSortKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.len() == 0 {
		panic("Sequence: GetSortKey called on an empty sequence")
	}
	return s.sortKey
}

func (s *Sequence) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len() == 0
}

func (s *Sequence) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// clear drops every queued task and returns them. Used on shutdown.
func (s *Sequence) clear() []*PendingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.clear()
}

func (s *Sequence) refreshSortKeyLocked() {
	head := s.queue.front()
	s.sortKey = NewSequenceSortKey(head.Traits.Priority, head.SequencedTime)
}
