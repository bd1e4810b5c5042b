package fib

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/emirpasic/gods/sets/treeset"
)

// TestModelAgainstTreeSetOracle drives a table and a github.com/emirpasic/
// gods ordered set through the same randomized sequence of Get/Delete
// calls and checks they agree on membership after every step — the
// "maintain a reference model, compare after each mutation" property-test
// shape, with gods' treeset standing in for a trusted reference set rather
// than a hand-rolled map.
func TestModelAgainstTreeSetOracle(t *testing.T) {
	oracle := treeset.NewWithStringComparator()
	tbl := newTestTable(t)

	rng := rand.New(rand.NewSource(7))
	const universe = 64
	const steps = 4000

	keyOf := func(i int) string { return addrAt(i).String() }

	for step := 0; step < steps; step++ {
		i := rng.Intn(universe)
		k := keyOf(i)
		p := NewIPv4Prefix(addrAt(i))

		if rng.Intn(2) == 0 {
			_, created := tbl.Get(p)
			wasMember := oracle.Contains(k)
			if created == wasMember {
				t.Fatalf("step %d: Get created=%v but oracle already had %v=%v", step, created, k, wasMember)
			}
			oracle.Add(k)
		} else {
			e, found := tbl.Find(p)
			wasMember := oracle.Contains(k)
			if found != wasMember {
				t.Fatalf("step %d: Find ok=%v, oracle membership=%v for %v", step, found, wasMember, k)
			}
			if found {
				tbl.Delete(e)
				oracle.Remove(k)
			}
		}
	}

	if got, want := tbl.Stats().Entries, uint32(oracle.Size()); got != want {
		t.Fatalf("final Stats().Entries = %d, oracle size = %d", got, want)
	}
	for _, v := range oracle.Values() {
		k := v.(string)
		p, err := netip.ParsePrefix(k)
		if err != nil {
			t.Fatalf("oracle produced an unparseable key %q: %v", k, err)
		}
		if _, ok := tbl.Find(NewIPv4Prefix(p)); !ok {
			t.Fatalf("oracle has %v but table does not", k)
		}
	}

	if err := tbl.Check(); err != nil {
		t.Fatalf("Check after randomized model run: %v", err)
	}
}
