package fib

import "testing"

func TestIteratorSuspendResume(t *testing.T) {
	tbl := newTestTable(t)
	const n = 30
	entries := make([]*Entry, n)
	for i := 0; i < n; i++ {
		e, _ := tbl.Get(NewIPv4Prefix(addrAt(i)))
		entries[i] = e
	}

	it := tbl.NewIterator()
	defer it.Close()

	var before int
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		before++
		if before == n/2 {
			break
		}
	}

	it.Suspend()

	// Mutate the table while the iterator holds no hazard row: delete every
	// other entry from the second half of the insertion order (in split
	// order these lie on both sides of the iterator's position), and
	// insert a few new ones.
	for i := n / 2; i < n; i += 2 {
		tbl.Delete(entries[i])
	}
	for i := n; i < n+10; i++ {
		tbl.Get(NewIPv4Prefix(addrAt(i)))
	}

	it.Resume()

	var after int
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		after++
	}

	if err := tbl.Check(); err != nil {
		t.Fatalf("Check after resumed iteration: %v", err)
	}
	if after == 0 {
		t.Fatalf("resumed iterator visited nothing")
	}
}

func TestIteratorUnlink(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 10; i++ {
		tbl.Get(NewIPv4Prefix(addrAt(i)))
	}

	it := tbl.NewIterator()
	defer it.Close()

	var unlinked int
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		if it.Unlink() {
			unlinked++
		}
	}

	if unlinked == 0 {
		t.Fatalf("Unlink never removed anything")
	}
	if got := tbl.Stats().Entries; got != uint32(10-unlinked) {
		t.Fatalf("Stats().Entries = %d, want %d", got, 10-unlinked)
	}
}

func TestIteratorCopy(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 10; i++ {
		tbl.Get(NewIPv4Prefix(addrAt(i)))
	}

	it := tbl.NewIterator()
	defer it.Close()
	it.Next()
	it.Next()

	snapshot := it.Copy()
	defer snapshot.Close()

	var fromOriginal, fromSnapshot int
	for {
		if _, ok := it.Next(); !ok {
			break
		}
		fromOriginal++
	}
	for {
		if _, ok := snapshot.Next(); !ok {
			break
		}
		fromSnapshot++
	}
	if fromOriginal != fromSnapshot {
		t.Fatalf("Copy diverged: original saw %d remaining, snapshot saw %d", fromOriginal, fromSnapshot)
	}
}
