package fib

import (
	"sync/atomic"
	"unsafe"
)

// markBit is the delete-mark carried in the low bit of a node's next
// pointer. A next pointer with this bit set means the node has been
// logically deleted; the bit never clears once set.
const markBit uintptr = 1

// sentinelBit is the low bit of a node's state word: 1 marks a bucket
// anchor carrying no payload, 0 marks a payload node. The remaining bits
// of state hold the link count, adjusted in steps of 2 so it never
// collides with the sentinel bit.
const sentinelBit uint32 = 1

// Entry is the payload half of a node: the prefix it was inserted under
// and an arbitrary user value. Its address is stable for the lifetime of
// the entry — callers may hold onto a *Entry returned by Get or Find and
// pass it back to Delete.
//
// Entry is embedded in node rather than node embedding a pointer to it,
// so that given an *Entry the owning node can be recovered by subtracting
// the field's offset — the same trick BIRD's fib_user_to_node/
// fib_node_to_user macros use over node_offset.
type Entry struct {
	Prefix Prefix
	Value  any
}

// node is the ordered element (C1 in the design). Payload nodes carry a
// live Entry; sentinel nodes carry a zero Entry and exist only to anchor
// a bucket at a stable split point in the list.
type node struct {
	next  unsafe.Pointer // tagged *node; low bit is markBit.
	state atomic.Uint32  // low bit sentinelBit; remaining bits link count.
	key   uint32         // K(A) = bitreverse32(hash(A)), or bitreverse32(bucket) for sentinels.
	Entry Entry
}

var nodeEntryOffset = unsafe.Offsetof(node{}.Entry)

// entryToNode recovers the owning node from a pointer to its embedded Entry.
func entryToNode(e *Entry) *node {
	return (*node)(unsafe.Pointer(uintptr(unsafe.Pointer(e)) - nodeEntryOffset))
}

// allocNode returns a recycled node from t.cfg.Pool if one is configured,
// otherwise a fresh one — the same Get-or-allocate shape as the teacher's
// statesPool in Maps/PoolMap/Node.go.
func (t *Table) allocNode() *node {
	if t.cfg.Pool != nil {
		if v := t.cfg.Pool.Get(); v != nil {
			if n, ok := v.(*node); ok {
				*n = node{}
				return n
			}
		}
	}
	return &node{}
}

// releaseNode returns a dropped node to t.cfg.Pool, mirroring the
// teacher's statesPool.Put on a losing CAS target.
func (t *Table) releaseNode(n *node) {
	if t.cfg.Pool != nil {
		t.cfg.Pool.Put(n)
	}
}

func (t *Table) newPayload(key uint32, e Entry) *node {
	n := t.allocNode()
	n.key, n.Entry = key, e
	return n
}

func (t *Table) newSentinel(key uint32) *node {
	n := t.allocNode()
	n.key = key
	n.state.Store(sentinelBit)
	return n
}

// loadNextRaw returns the tagged next pointer as-is.
func (n *node) loadNextRaw() unsafe.Pointer {
	return atomic.LoadPointer(&n.next)
}

// untag strips the delete-mark, returning the plain *node (possibly nil).
func untag(p unsafe.Pointer) *node {
	return (*node)(unsafe.Pointer(uintptr(p) &^ markBit))
}

func marked(p unsafe.Pointer) bool {
	return uintptr(p)&markBit != 0
}

// mark sets the delete-mark on next. It is the linearisation point of a
// logical delete: it succeeds iff this call observed the bit unset.
func (n *node) mark() bool {
	old := atomic.LoadPointer(&n.next)
	for !marked(old) {
		if atomic.CompareAndSwapPointer(&n.next, old, unsafe.Pointer(uintptr(old)|markBit)) {
			return true
		}
		old = atomic.LoadPointer(&n.next)
	}
	return false
}

// tryLink CASes next from the expected tagged value to a new tagged value.
func (n *node) tryLink(old, new unsafe.Pointer) bool {
	return atomic.CompareAndSwapPointer(&n.next, old, new)
}

func (n *node) isSentinel() bool {
	return n.state.Load()&sentinelBit != 0
}

func (n *node) linkCount() uint32 {
	return n.state.Load() >> 1
}

func (n *node) incLink() {
	n.state.Add(2)
}

func (n *node) decLink() {
	n.state.Add(^uint32(1)) // add -2
}

// loadNext returns the immediate successor of n, stripped of its delete-mark,
// along with whether n itself is marked for deletion. Scanning loops in
// list.go decide what to do about a marked successor themselves (spec.md
// §4.2 restarts rather than opportunistically unlinking while scanning —
// only the dedicated deleteNode path physically unlinks a node, since it
// alone is responsible for the link-count and reclaim-queue bookkeeping
// that must accompany an unlink).
func (n *node) loadNext() (succ *node, selfMarked bool) {
	raw := atomic.LoadPointer(&n.next)
	return untag(raw), marked(raw)
}
