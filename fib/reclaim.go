package fib

import (
	"sync/atomic"
	"time"
)

// MaxThreads caps the number of concurrently active soft-link rows —
// spec.md §6's tuning constant. A worker that cannot claim a row spins;
// there is no error for exhaustion, only reduced throughput.
const MaxThreads = 32

// row is one reservation slot of the hazard-pointer domain (C4). Each
// active operation claims a row and publishes the nodes it is currently
// touching into its two soft-link slots — curr and succ for a mutator,
// a single slot for a walk or iterator — so the reclaimer can see them.
type row struct {
	reserved atomic.Bool
	soft     [2]atomic.Pointer[node]
}

// reserveRow claims a free row, spinning across the fixed array exactly
// the way spec.md §4.4 describes: "a worker spins over the MAX_THREADS-
// wide reservation array, claiming a false → true slot via exchange."
func (t *Table) reserveRow() int {
	for {
		for i := range t.rows {
			if t.rows[i].reserved.CompareAndSwap(false, true) {
				return i
			}
		}
	}
}

func (t *Table) releaseRow(r int) {
	t.setSoft(r, 0, nil)
	t.setSoft(r, 1, nil)
	t.rows[r].reserved.Store(false)
}

// setSoft publishes (or clears) one of row r's two hazard slots, keeping
// each node's link count in sync with the hazard references that hold it.
func (t *Table) setSoft(r int, slot int, n *node) *node {
	old := t.rows[r].soft[slot].Swap(n)
	if old != nil {
		old.decLink()
	}
	if n != nil {
		n.incLink()
	}
	return old
}

// hazardHolds reports whether any active row's soft-link slots still
// reference n — the check the reclaimer performs before freeing.
func (t *Table) hazardHolds(n *node) bool {
	for i := range t.rows {
		if t.rows[i].soft[0].Load() == n || t.rows[i].soft[1].Load() == n {
			return true
		}
	}
	return false
}

// freeItem is one entry of the deferred-free queue: a logically deleted
// node awaiting hazard clearance before it can be dropped for the
// garbage collector. The queue itself is the classic Michael-Scott
// lock-free FIFO, adapted from Queues/ConcLinkedQueue.go — spec.md §4.4's
// "handovers head, handovers_end sentinel tail" doubly-linked FIFO, drained
// tail-to-head by the reclaimer, reimplemented here as the idiomatic Go
// lock-free-queue shape the teacher already had on hand rather than a
// hand-rolled doubly linked list with manual CAS-on-head bookkeeping.
type freeItem struct {
	n    *node
	next atomic.Pointer[freeItem]
}

type freeQueue struct {
	head, tail atomic.Pointer[freeItem]
	pending    atomic.Int64
}

func newFreeQueue() *freeQueue {
	q := &freeQueue{}
	stub := &freeItem{}
	q.head.Store(stub)
	q.tail.Store(stub)
	return q
}

func (q *freeQueue) push(n *node) {
	newTail := &freeItem{n: n}
	for {
		oldTail := q.tail.Load()
		oldNext := oldTail.next.Load()
		if oldNext != nil {
			q.tail.CompareAndSwap(oldTail, oldNext)
			continue
		}
		if oldTail.next.CompareAndSwap(nil, newTail) {
			q.tail.CompareAndSwap(oldTail, newTail)
			q.pending.Add(1)
			return
		}
	}
}

func (q *freeQueue) pop() (*node, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head == tail {
			if next == nil {
				return nil, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if q.head.CompareAndSwap(head, next) {
			q.pending.Add(-1)
			return next.n, true
		}
	}
}

func (q *freeQueue) len() int64 { return q.pending.Load() }

// queueForReclaim enqueues a logically deleted node — its mark bit is
// already set by the caller's deleteNode — for the background reclaimer to
// pick up once no hazard references it.
func (t *Table) queueForReclaim(n *node) {
	t.deferred.push(n)
}

// startReclaimer launches the per-table background reclaimer goroutine.
// It is started by New and stopped by Close; there is exactly one per
// Table, never a process-wide singleton.
func (t *Table) startReclaimer() {
	t.reclaimerDone = make(chan struct{})
	go func() {
		defer close(t.reclaimerDone)
		ticker := time.NewTicker(t.cfg.ReclaimInterval)
		defer ticker.Stop()
		t.log().Debug("reclaimer started")
		for {
			select {
			case <-ticker.C:
				t.drainOnce()
			case <-t.stopCh:
				t.drainOnce()
				t.log().Debug("reclaimer stopped")
				return
			}
		}
	}()
}

// drainOnce sweeps every node currently on the deferred-free queue exactly
// once. A node that isn't yet reclaimable (nonzero link count or a live
// hazard reference) is pushed back onto the tail for the next sweep —
// never spun on within this call, so one stubborn node can't starve the
// rest of the queue.
func (t *Table) drainOnce() {
	n := t.deferred.len()
	for i := int64(0); i < n; i++ {
		nd, ok := t.deferred.pop()
		if !ok {
			return
		}
		if nd.linkCount() == 0 && !t.hazardHolds(nd) {
			// nd's stale forward reference to its own successor (held in
			// nd.next, never cleared after unlinking) is about to vanish
			// along with nd itself — balance out the increment deleteNode
			// gave that successor when it spliced a new predecessor in.
			if succ := untag(nd.loadNextRaw()); succ != nil {
				succ.decLink()
			}
			// Hand nd back to the pool if one is configured; otherwise the
			// Go garbage collector reclaims the memory once no pointer
			// into it survives — no manual free() is needed either way.
			t.releaseNode(nd)
			continue
		}
		t.deferred.push(nd)
	}
}
