package core

import (
	"container/heap"
	"sync"
)

// sequenceAndSortKey owns a Sequence while it sits in the PriorityQueue.
// takeSequence is one-shot; a taken pairing must not be compared again.
type sequenceAndSortKey struct {
	sequence  *Sequence
	sortKey   SequenceSortKey
	insertion uint64 // push order, breaks ties between equal keys
	index     int    // for heap
}

func (p *sequenceAndSortKey) takeSequence() *Sequence {
	if p.sequence == nil {
		panic("PriorityQueue: sequence already taken from its pairing")
	}
	seq := p.sequence
	p.sequence = nil
	return seq
}

// sequenceHeap implements heap.Interface as a max-heap on SequenceSortKey.
type sequenceHeap []*sequenceAndSortKey

func (h sequenceHeap) Len() int { return len(h) }

// Less puts the more important key on top; equal keys keep push order.
func (h sequenceHeap) Less(i, j int) bool {
	if h[i].sequence == nil || h[j].sequence == nil {
		panic("PriorityQueue: comparing a pairing whose sequence was taken")
	}
	if h[j].sortKey.Less(h[i].sortKey) {
		return true
	}
	if h[i].sortKey.Less(h[j].sortKey) {
		return false
	}
	return h[i].insertion < h[j].insertion
}

func (h sequenceHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *sequenceHeap) Push(x any) {
	n := len(*h)
	item := x.(*sequenceAndSortKey)
	item.index = n
	*h = append(*h, item)
}

func (h *sequenceHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// PriorityQueue holds the sequences that are ready to run. All access goes
// through a Transaction, which holds the queue lock for its whole lifetime
// so that compound operations such as peek-then-pop are atomic.
type PriorityQueue struct {
	mu            sync.Mutex
	container     sequenceHeap
	nextInsertion uint64
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{
		container: make(sequenceHeap, 0, defaultQueueCap),
	}
}

// BeginTransaction blocks until the queue lock is acquired. The caller must
// Close the transaction. Beginning a second transaction on the same
// goroutine while one is open deadlocks.
func (pq *PriorityQueue) BeginTransaction() *Transaction {
	pq.mu.Lock()
	return &Transaction{pq: pq}
}

// WithTransaction runs fn inside a transaction and closes it afterwards,
// even if fn panics.
func (pq *PriorityQueue) WithTransaction(fn func(txn *Transaction)) {
	txn := pq.BeginTransaction()
	defer txn.Close()
	fn(txn)
}

// Transaction is a lock-scoped handle on a PriorityQueue.
type Transaction struct {
	pq     *PriorityQueue
	closed bool
}

// Close releases the queue lock. It is the only place the lock is released.
func (t *Transaction) Close() {
	t.checkOpen()
	t.closed = true
	t.pq.mu.Unlock()
}

// Push inserts sequence with sortKey. The sequence must not be empty.
func (t *Transaction) Push(sequence *Sequence, sortKey SequenceSortKey) {
	t.checkOpen()
	if sequence == nil {
		panic("PriorityQueue: Push called with a nil sequence")
	}
	if sequence.Empty() {
		panic("PriorityQueue: Push called with an empty sequence")
	}

	item := &sequenceAndSortKey{
		sequence:  sequence,
		sortKey:   sortKey,
		insertion: t.pq.nextInsertion,
	}
	t.pq.nextInsertion++
	heap.Push(&t.pq.container, item)
}

// PeekSortKey returns the sort key of the top sequence without removing it.
func (t *Transaction) PeekSortKey() SequenceSortKey {
	t.checkOpen()
	if len(t.pq.container) == 0 {
		panic("PriorityQueue: PeekSortKey called on an empty queue")
	}
	return t.pq.container[0].sortKey
}

// PopSequence removes and returns the top sequence.
func (t *Transaction) PopSequence() *Sequence {
	t.checkOpen()
	if len(t.pq.container) == 0 {
		panic("PriorityQueue: PopSequence called on an empty queue")
	}
	item := heap.Pop(&t.pq.container).(*sequenceAndSortKey)
	return item.takeSequence()
}

func (t *Transaction) IsEmpty() bool {
	t.checkOpen()
	return len(t.pq.container) == 0
}

func (t *Transaction) Size() int {
	t.checkOpen()
	return len(t.pq.container)
}

// Clear removes every sequence and returns them in no particular order.
// Used on shutdown.
func (t *Transaction) Clear() []*Sequence {
	t.checkOpen()
	out := make([]*Sequence, 0, len(t.pq.container))
	for _, item := range t.pq.container {
		out = append(out, item.takeSequence())
	}
	t.pq.container = make(sequenceHeap, 0, defaultQueueCap)
	return out
}

func (t *Transaction) checkOpen() {
	if t.closed {
		panic("PriorityQueue: transaction used after Close")
	}
}
