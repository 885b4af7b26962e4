package core

import (
	"fmt"
	"time"
)

// SequenceSortKey decides the position of a Sequence in the PriorityQueue.
// Higher priority first; for equal priority the earlier sequenced time first.
type SequenceSortKey struct {
	priority              TaskPriority
	nextTaskSequencedTime time.Time
}

func NewSequenceSortKey(priority TaskPriority, nextTaskSequencedTime time.Time) SequenceSortKey {
	return SequenceSortKey{
		priority:              priority,
		nextTaskSequencedTime: nextTaskSequencedTime,
	}
}

func (k SequenceSortKey) Priority() TaskPriority { return k.priority }

func (k SequenceSortKey) NextTaskSequencedTime() time.Time { return k.nextTaskSequencedTime }

// Less reports whether k is less important than other: it has a lower
// priority, or the same priority and a next task sequenced after other's.
func (k SequenceSortKey) Less(other SequenceSortKey) bool {
	if k.priority != other.priority {
		return k.priority < other.priority
	}
	return k.nextTaskSequencedTime.After(other.nextTaskSequencedTime)
}

func (k SequenceSortKey) Equal(other SequenceSortKey) bool {
	return k.priority == other.priority && k.nextTaskSequencedTime.Equal(other.nextTaskSequencedTime)
}

func (k SequenceSortKey) String() string {
	return fmt.Sprintf("{%s %s}", k.priority, k.nextTaskSequencedTime.Format(time.RFC3339Nano))
}
