package fib

import "unsafe"

// insertSentinel implements spec.md §4.2's "Insert (sentinel)": same
// skeleton as insertPayload, but K = bitreverse32(b) and uniqueness is
// tested sentinel-against-sentinel at equal key. On success it also
// publishes the new sentinel into the bucket array.
func (t *Table) insertSentinel(ba *bucketArray, b uint32) *node {
	key := reverseKey(b)
	start := t.head
	if parent := parentBucket(b); parent != b {
		if p := ba.get(parent); p != nil {
			start = p
		}
	}

	r := t.reserveRow()
	defer t.releaseRow(r)

	for {
		if existing := ba.get(b); existing != nil {
			return existing
		}

		curr := start
		t.setSoft(r, 0, curr)
		for {
			succ, selfMarked := curr.loadNext()
			if selfMarked {
				break // predecessor deleted out from under us; restart below
			}
			t.setSoft(r, 1, succ)
			if succ != nil && succ.key < key {
				curr = succ
				t.setSoft(r, 0, curr)
				continue
			}
			if succ != nil && succ.key == key && succ.isSentinel() {
				// Another worker already created this bucket's sentinel.
				ba.casSet(b, succ)
				return succ
			}
			newN := t.newSentinel(key)
			newN.next = tagOf(succ)
			if curr.tryLink(tagOf(succ), tagOf(newN)) {
				newN.incLink()
				if ba.casSet(b, newN) {
					return newN
				}
				return ba.get(b)
			}
			break // CAS lost the race; restart the scan from start.
		}
	}
}

// insertPayload implements spec.md §4.2's "Insert (payload)" in full,
// including the grow check, lazy bucket creation, and duplicate handling.
// It returns (existing-or-new entry, created).
func (t *Table) insertPayload(a Prefix) (*Entry, bool) {
	hash := a.Hash()
	key := reverseKey(hash)

	r := t.reserveRow()
	defer t.releaseRow(r)

	for {
		if t.entries.Load() >= t.entriesMax.Load() {
			t.grow()
		}
		ba := t.buckets.Load()
		b := hash & ba.mask
		sentinel := t.ensureBucket(ba, b)
		if sentinel == nil {
			continue // bucket array swapped out mid-resize; retry with the fresh array.
		}

		curr := sentinel
		t.setSoft(r, 0, curr)
		for {
			succ, selfMarked := curr.loadNext()
			if selfMarked {
				break // predecessor deleted out from under us; restart from the outer loop.
			}
			t.setSoft(r, 1, succ)

			if succ != nil && succ.key < key {
				curr = succ
				t.setSoft(r, 0, curr)
				continue
			}

			// Inspect the run of nodes sharing this key for a duplicate or a
			// marked node blocking the insertion point.
			probe := succ
			dup, dupMarked, foundDup, blocked := (*node)(nil), false, false, false
			for probe != nil && probe.key == key {
				if !probe.isSentinel() && probe.Entry.Prefix.Equal(a) {
					_, dupMarked = probe.loadNext()
					dup, foundDup = probe, true
					break
				}
				var mk bool
				probe, mk = probe.loadNext()
				if mk {
					blocked = true
					break
				}
			}
			if blocked {
				break
			}
			if foundDup {
				if dupMarked {
					break // the duplicate is mid-delete; restart and re-scan.
				}
				return &dup.Entry, false
			}

			newN := t.newPayload(key, Entry{Prefix: a.Copy()})
			newN.next = tagOf(succ)
			if curr.tryLink(tagOf(succ), tagOf(newN)) {
				newN.incLink()
				if t.cfg.InitFn != nil {
					t.cfg.InitFn(&newN.Entry)
				}
				t.entries.Add(1)
				return &newN.Entry, true
			}
			break // lost the CAS race; restart from the outer loop.
		}
	}
}

// findNode implements spec.md §4.2's "Lookup (fib_find)": scan forward
// from the bucket sentinel while K(curr) <= key; on an equal-key, equal-
// prefix, unmarked payload, return it.
func (t *Table) findNode(a Prefix) *node {
	hash := a.Hash()
	key := reverseKey(hash)

	r := t.reserveRow()
	defer t.releaseRow(r)

	for {
		ba := t.buckets.Load()
		b := hash & ba.mask
		sentinel := ba.get(b)
		if sentinel == nil {
			sentinel = t.ensureBucket(ba, b)
		}

		curr := sentinel
		t.setSoft(r, 0, curr)
		for {
			succ, selfMarked := curr.loadNext()
			if selfMarked {
				break // restart
			}
			t.setSoft(r, 1, succ)
			if succ == nil || succ.key > key {
				return nil
			}
			if succ.key == key && !succ.isSentinel() && succ.Entry.Prefix.Equal(a) {
				if _, mk := succ.loadNext(); mk {
					break // restart
				}
				return succ
			}
			curr = succ
			t.setSoft(r, 0, curr)
		}
	}
}

// deleteNode implements spec.md §4.2's "Delete". It returns true exactly
// once — the call whose mark() linearises the logical delete.
func (t *Table) deleteNode(n *node) bool {
	if !n.mark() {
		return false
	}

	key := n.key
	hash := reverseKey(key) // bitreverse32 is its own inverse.

	r := t.reserveRow()
	defer t.releaseRow(r)

	for {
		ba := t.buckets.Load()
		b := hash & ba.mask
		sentinel := ba.get(b)
		if sentinel == nil {
			sentinel = t.ensureBucket(ba, b)
		}

		curr := sentinel
		t.setSoft(r, 0, curr)
		for {
			succ, selfMarked := curr.loadNext()
			if selfMarked {
				break // predecessor was itself deleted; restart from the sentinel.
			}
			if succ == n {
				newNext := tagOf(untag(n.loadNextRaw()))
				if curr.tryLink(tagOf(n), newNext) {
					n.decLink()
					if nn := untag(n.loadNextRaw()); nn != nil {
						// curr now holds a live forward reference to nn that didn't
						// exist before; n's own stale reference to nn isn't accounted
						// for until the reclaimer actually drops n (see drainOnce),
						// which is when it gets balanced back out.
						nn.incLink()
					}
					t.entries.Add(^uint32(0)) // -1
					t.queueForReclaim(n)
					t.maybeShrink()
					return true
				}
				break // lost the CAS race; restart from the sentinel.
			}
			if succ == nil || succ.key > key {
				// Invariant violation: a marked node with no predecessor
				// linking to it indicates corruption or API misuse.
				t.fatalf("delete: no predecessor found for marked node")
			}
			curr = succ
			t.setSoft(r, 0, curr)
		}
	}
}

func tagOf(n *node) unsafe.Pointer {
	return unsafe.Pointer(n)
}
