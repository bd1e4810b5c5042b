package fib

// Iterator is the suspendable enumeration handle described in spec.md's
// walk/iterator protocol (C5) — a Go rendition of BIRD's fib_iterator.
// Unlike Walk, an Iterator can be suspended (releasing its hazard row so
// the reclaimer may proceed) and resumed later, even if the node it was
// sitting on has since been deleted: Resume re-scans from the list head
// for the first surviving node at or past the suspended position, the
// same fit_get/fit_put_next contract as fit_get in lib/fib.h.
type Iterator struct {
	t        *Table
	row      int
	released bool
	resumeAt uint32
	curr     *node
}

// NewIterator reserves a hazard row and positions the iterator at the
// list head. Close must be called when done, directly or via Walk.
func (t *Table) NewIterator() *Iterator {
	it := &Iterator{t: t, row: t.reserveRow()}
	it.curr = t.head
	t.setSoft(it.row, 0, it.curr)
	return it
}

// Next advances to, and returns, the next live payload entry, skipping
// sentinels and nodes marked for deletion. It returns false once the list
// is exhausted.
func (it *Iterator) Next() (*Entry, bool) {
	if it.released {
		it.Resume()
	}
	for {
		// If the node we are sitting on has been deleted, its next pointer
		// still leads forward in key order (it is frozen once marked and
		// our hazard slot keeps the node alive), so we advance past it.
		succ, _ := it.curr.loadNext()
		if succ == nil {
			return nil, false
		}
		it.curr = succ
		it.t.setSoft(it.row, 0, it.curr)
		if succ.isSentinel() {
			continue
		}
		if _, marked := succ.loadNext(); marked {
			continue
		}
		return &succ.Entry, true
	}
}

// Suspend releases the iterator's hazard row without forgetting its
// position, letting a long-running caller stop touching the table between
// batches without blocking reclamation indefinitely. Next and Unlink
// transparently call Resume first if needed.
func (it *Iterator) Suspend() {
	if it.released {
		return
	}
	it.resumeAt = it.curr.key
	it.t.releaseRow(it.row)
	it.released = true
}

// Resume reclaims a hazard row and re-finds the iterator's position by
// key, tolerating deletions that happened while it was suspended.
func (it *Iterator) Resume() {
	if !it.released {
		return
	}
	it.row = it.t.reserveRow()
	curr := it.t.head
	it.t.setSoft(it.row, 0, curr)
	for {
		succ, selfMarked := curr.loadNext()
		if selfMarked {
			curr = it.t.head
			it.t.setSoft(it.row, 0, curr)
			continue
		}
		if succ == nil || succ.key >= it.resumeAt {
			break
		}
		curr = succ
		it.t.setSoft(it.row, 0, curr)
	}
	it.curr = curr
	it.released = false
}

// Unlink deletes the entry the iterator is currently sitting on; the
// following Next continues from that entry's successor — BIRD's
// FIB_ITERATE_UNLINK idiom of deleting "the current node" mid-walk
// without losing the walk's position.
func (it *Iterator) Unlink() bool {
	if it.released {
		it.Resume()
	}
	if it.curr == it.t.head || it.curr.isSentinel() {
		return false
	}
	return it.t.deleteNode(it.curr)
}

// Copy duplicates src's position into a freshly reserved iterator, the
// FIB_ITERATE_COPY idiom — useful for a caller that wants to snapshot a
// walk's progress before trying something that might need to backtrack.
func (src *Iterator) Copy() *Iterator {
	dst := src.t.NewIterator()
	dst.curr = src.curr
	dst.t.setSoft(dst.row, 0, dst.curr)
	return dst
}

// Close releases the iterator's hazard row. Safe to call on an already-
// suspended iterator.
func (it *Iterator) Close() {
	if !it.released {
		it.t.releaseRow(it.row)
		it.released = true
	}
}

// Walk performs a single scoped enumeration of every live entry, calling
// fn for each in split-order until it returns false or the table is
// exhausted — spec.md §6's walk. Multiple Walk/Iterator calls may run
// concurrently with each other and with mutation; each claims its own
// hazard row from the fixed MaxThreads-wide array.
func (t *Table) Walk(fn func(*Entry) bool) {
	it := t.NewIterator()
	defer it.Close()
	for {
		e, ok := it.Next()
		if !ok {
			return
		}
		if !fn(e) {
			return
		}
	}
}
