// Package taskpool implements the multi-priority, multi-type task queue
// that sits between submitters (callers, AsyncFile/SharedFile chains,
// the timing wheel) and a worker.Pool. A Pool is plain data: every
// mutating method assumes the caller already holds whatever external
// mutex guards it — in the reference design that is the mutex half of
// the (mutex, condvar) pair a worker.Pool owns, not a lock internal to
// the queue itself.
package taskpool

import (
	"container/heap"

	"github.com/taskflow-go/taskflow/pkg/task"
)

// entry is one heap element: higher priority sorts first, ties broken by
// insertion order (lower seq first) to give FIFO semantics within a
// priority tier.
type entry struct {
	priority uint64
	seq      uint64
	t        *task.Task
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(*entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Pool is a TaskType-partitioned priority queue with a reusable free-list
// of Task slots. Not safe for concurrent use on its own — see the
// package doc.
type Pool struct {
	queues   map[task.Type]*entryHeap
	freeList *task.Cache
	capacity int
	nextSeq  uint64
	size     int
}

// New creates a Pool whose free-list preallocates freeListCapacity empty
// Task slots (a non-positive value disables preallocation and recycling
// rather than panicking — see task.Cache).
func New(freeListCapacity int) *Pool {
	queues := make(map[task.Type]*entryHeap, 4)
	for _, typ := range []task.Type{task.Empty, task.Async, task.Sync, task.SyncImme} {
		h := &entryHeap{}
		heap.Init(h)
		queues[typ] = h
	}
	return &Pool{
		queues:   queues,
		freeList: task.NewCache(freeListCapacity),
		capacity: freeListCapacity,
	}
}

// Push acquires a free Task slot (or a fresh one if the free-list is
// exhausted), populates it, and inserts it into typ's priority order.
// Must be called under the caller's external lock.
func (p *Pool) Push(typ task.Type, priority uint64, thunk task.Thunk, label string) {
	t := p.freeList.Pop()
	t.SetType(typ)
	t.SetPriority(priority)
	t.SetLabel(label)
	t.SetThunk(thunk)

	p.nextSeq++
	heap.Push(p.queues[typ], &entry{priority: priority, seq: p.nextSeq, t: t})
	p.size++
}

// Pop returns the highest-priority task whose type is enabled by mask,
// or (nil, false) if no eligible type has a pending task. Ties within a
// priority are broken by insertion order. Must be called under the
// caller's external lock.
func (p *Pool) Pop(mask task.Mask) (*task.Task, bool) {
	var best *entry
	var bestQueue *entryHeap

	for typ, q := range p.queues {
		if mask&typ.Bit() == 0 || q.Len() == 0 {
			continue
		}
		top := (*q)[0]
		if best == nil || top.priority > best.priority || (top.priority == best.priority && top.seq < best.seq) {
			best = top
			bestQueue = q
		}
	}
	if best == nil {
		return nil, false
	}

	heap.Pop(bestQueue)
	p.size--
	return best.t, true
}

// Recycle returns t's slot to the free-list, dropping it on the floor
// once the free-list is back at its configured capacity. Must be called
// under the caller's external lock.
func (p *Pool) Recycle(t *task.Task) {
	p.freeList.Push(t)
}

// Len returns the total number of pending tasks across all types.
func (p *Pool) Len() int { return p.size }

// LenByType returns the number of pending tasks of typ.
func (p *Pool) LenByType(typ task.Type) int {
	q, ok := p.queues[typ]
	if !ok {
		return 0
	}
	return q.Len()
}

// FreeListSize returns the number of slots currently held free.
func (p *Pool) FreeListSize() int { return p.freeList.Size() }
