package fib

import (
	"sync/atomic"
)

// bucketArray is C3: a power-of-two array of pointers into the split list,
// one per bucket, each pointing at that bucket's sentinel once it has been
// touched. An unpopulated slot is nil — buckets are populated lazily.
type bucketArray struct {
	order uint32
	mask  uint32
	slots []atomic.Pointer[node]
}

func newBucketArray(order uint32) *bucketArray {
	size := uint32(1) << order
	return &bucketArray{order: order, mask: size - 1, slots: make([]atomic.Pointer[node], size)}
}

func (ba *bucketArray) size() uint32 { return ba.mask + 1 }

func (ba *bucketArray) get(b uint32) *node { return ba.slots[b&ba.mask].Load() }

func (ba *bucketArray) set(b uint32, n *node) { ba.slots[b&ba.mask].Store(n) }

// casSet publishes n into slot b iff it was previously empty.
func (ba *bucketArray) casSet(b uint32, n *node) bool {
	return ba.slots[b&ba.mask].CompareAndSwap(nil, n)
}

// grow doubles the bucket array. Only one grower proceeds at a time —
// contenders simply skip, matching spec.md §4.3 and the CAS-guarded
// resize found in the teacher's Maps/base.go trySplit/tryMerge.
func (t *Table) grow() {
	if !t.resizing.CompareAndSwap(false, true) {
		return
	}
	defer t.resizing.Store(false)

	old := t.buckets.Load()
	if old.order >= t.cfg.MaxHashOrder {
		return
	}
	if t.entries.Load() < t.entriesMax.Load() {
		return // another grower already handled it
	}

	newArr := newBucketArray(old.order + 1)
	for i := uint32(0); i < old.size(); i++ {
		newArr.slots[i].Store(old.slots[i].Load())
	}
	t.buckets.Store(newArr)
	t.updateThresholds(newArr.size())
	t.log().WithField("order", newArr.order).Debug("grew bucket array")
}

// maybeShrink halves the bucket array when it has become sparse. This
// resolves the open question in spec.md §9: entries_min is carried
// through symmetrically with entries_max rather than left dead, per the
// DESIGN.md decision.
func (t *Table) maybeShrink() {
	old := t.buckets.Load()
	if old.order <= t.cfg.HashOrder {
		return
	}
	if t.entries.Load() >= t.entriesMin.Load() {
		return
	}
	if !t.resizing.CompareAndSwap(false, true) {
		return
	}
	defer t.resizing.Store(false)

	old = t.buckets.Load()
	if old.order <= t.cfg.HashOrder || t.entries.Load() >= t.entriesMin.Load() {
		return
	}

	newArr := newBucketArray(old.order - 1)
	for i := uint32(0); i < newArr.size(); i++ {
		newArr.slots[i].Store(old.slots[i].Load())
	}
	t.buckets.Store(newArr)
	t.updateThresholds(newArr.size())
	t.log().WithField("order", newArr.order).Debug("shrank bucket array")
}

func (t *Table) updateThresholds(size uint32) {
	t.entriesMax.Store(size * 2)
	t.entriesMin.Store(size / 5)
}

// ensureBucket returns bucket b's sentinel, creating it — and, recursively,
// its parent's — if this is the first touch. Mirrors spec.md §4.2's
// "Insert (sentinel)" skeleton.
func (t *Table) ensureBucket(ba *bucketArray, b uint32) *node {
	if s := ba.get(b); s != nil {
		return s
	}
	if parent := parentBucket(b); parent != b {
		t.ensureBucket(ba, parent)
	}
	return t.insertSentinel(ba, b)
}
