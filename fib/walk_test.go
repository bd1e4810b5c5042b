package fib

import (
	"testing"
)

func TestWalkVisitsEveryEntry(t *testing.T) {
	tbl := newTestTable(t)
	const n = 500
	want := make(map[netipKey]bool, n)
	for i := 0; i < n; i++ {
		p := addrAt(i)
		tbl.Get(NewIPv4Prefix(p))
		want[netipKey(p.String())] = false
	}

	tbl.Walk(func(e *Entry) bool {
		s := e.Prefix.(IPv4Prefix).String()
		if _, ok := want[netipKey(s)]; !ok {
			t.Fatalf("Walk visited an unexpected prefix %s", s)
		}
		want[netipKey(s)] = true
		return true
	})

	for k, seen := range want {
		if !seen {
			t.Fatalf("Walk never visited %s", k)
		}
	}
}

type netipKey string

func TestWalkStopsEarly(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 50; i++ {
		tbl.Get(NewIPv4Prefix(addrAt(i)))
	}

	var count int
	tbl.Walk(func(e *Entry) bool {
		count++
		return count < 5
	})
	if count != 5 {
		t.Fatalf("Walk with an early-stop callback visited %d entries, want 5", count)
	}
}

// TestNestedWalk mirrors BIRD's FIB_WALK nesting guarantee: a second walk
// started from inside the first's callback sees a consistent view and
// does not deadlock, since each walk claims its own hazard row.
func TestNestedWalk(t *testing.T) {
	tbl := newTestTable(t)
	for i := 0; i < 20; i++ {
		tbl.Get(NewIPv4Prefix(addrAt(i)))
	}

	var outer, inner int
	tbl.Walk(func(e *Entry) bool {
		outer++
		tbl.Walk(func(e2 *Entry) bool {
			inner++
			return true
		})
		return true
	})
	if outer != 20 {
		t.Fatalf("outer walk visited %d entries, want 20", outer)
	}
	if inner != 20*20 {
		t.Fatalf("inner walk total visits = %d, want %d", inner, 20*20)
	}
}

func TestWalkDuringConcurrentDelete(t *testing.T) {
	tbl := newTestTable(t)
	entries := make([]*Entry, 200)
	for i := range entries {
		e, _ := tbl.Get(NewIPv4Prefix(addrAt(i)))
		entries[i] = e
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < len(entries); i += 2 {
			tbl.Delete(entries[i])
		}
	}()

	tbl.Walk(func(e *Entry) bool { return true })
	<-done

	if err := tbl.Check(); err != nil {
		t.Fatalf("Check after walk racing with delete: %v", err)
	}
}
