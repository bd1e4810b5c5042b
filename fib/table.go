// Package fib implements a concurrent, prefix-indexed associative
// container — a Forwarding Information Base — backed by a split-ordered
// lock-free hash table. It supports insertion, deletion, exact lookup,
// longest-prefix-match ("CIDR routing") lookup, and enumeration concurrent
// with mutation, without coarse locking.
//
// The design is a Go rendition of BIRD's lib/fib.h: a single ordered
// linked list sorted by bit-reversed hash (so any power-of-two bucketing
// exposes stable split points), a lazily populated bucket array over it,
// and a hazard-pointer-style reclamation scheme that defers freeing a
// logically deleted node until no in-flight operation still references it.
package fib

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Tuning constants, spec.md §6.
const (
	HashDefOrder = 10 // default bucket-array order: 1024 buckets.
	HashHiMax    = 24 // highest order a table will grow to.
)

// DefaultReclaimInterval is how often the background reclaimer sweeps the
// deferred-free queue, spec.md §4.4.
const DefaultReclaimInterval = 30 * time.Second

// Pool mirrors sync.Pool's shape. It is the "pool handle (for allocator
// interop)" external contract from spec.md §3/§6: the enclosing daemon's
// allocator is out of scope, but a table tolerates either a bespoke pool
// or plain native allocation. When Config.Pool is nil, freed nodes are
// simply dropped for the Go garbage collector.
type Pool interface {
	Get() any
	Put(any)
}

// Config configures a Table. The zero value is valid; New fills in
// defaults for every unset field.
type Config struct {
	// HashOrder is the initial bucket-array order (log2 of bucket count).
	// Defaults to HashDefOrder.
	HashOrder uint32
	// MaxHashOrder caps how large the bucket array may grow. Defaults to
	// HashHiMax.
	MaxHashOrder uint32
	// ReclaimInterval is the background reclaimer's sweep period. Defaults
	// to DefaultReclaimInterval.
	ReclaimInterval time.Duration
	// InitFn, if set, is called once on a freshly created entry the first
	// time Get inserts it — the fib_init_fn contract from spec.md §6.
	InitFn func(*Entry)
	// Pool optionally recycles node-adjacent allocations; see the Pool
	// type doc. May be left nil.
	Pool Pool
	// Logger receives structural diagnostics (reclaimer lifecycle, grow/
	// shrink events, fatal invariant violations). Defaults to
	// logrus.StandardLogger().
	Logger logrus.FieldLogger
}

func (c *Config) setDefaults() {
	if c.HashOrder == 0 {
		c.HashOrder = HashDefOrder
	}
	if c.MaxHashOrder == 0 {
		c.MaxHashOrder = HashHiMax
	}
	if c.ReclaimInterval == 0 {
		c.ReclaimInterval = DefaultReclaimInterval
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

// Table is the FIB described in spec.md §3. All of its mutating
// operations are lock-free.
type Table struct {
	cfg      Config
	addrType AddrType

	head    *node // bucket 0's sentinel; the list head.
	buckets atomic.Pointer[bucketArray]

	entries    atomic.Uint32
	entriesMin atomic.Uint32
	entriesMax atomic.Uint32

	resizing atomic.Bool

	rows [MaxThreads]row

	deferred *freeQueue

	stopCh        chan struct{}
	reclaimerDone chan struct{}
	closeOnce     sync.Once

	logEntry logrus.FieldLogger
}

// New creates a table for the given address type and starts its
// background reclaimer. Callers must call Close when done.
func New(addrType AddrType, cfg Config) *Table {
	cfg.setDefaults()

	t := &Table{
		cfg:      cfg,
		addrType: addrType,
		deferred: newFreeQueue(),
		stopCh:   make(chan struct{}),
	}
	t.logEntry = cfg.Logger.WithField("component", "fib")

	t.head = t.newSentinel(0)
	ba := newBucketArray(cfg.HashOrder)
	ba.set(0, t.head)
	t.buckets.Store(ba)
	t.updateThresholds(ba.size())

	t.startReclaimer()
	t.log().WithFields(logrus.Fields{"order": cfg.HashOrder, "addrType": addrType}).Info("fib table initialised")
	return t
}

func (t *Table) log() logrus.FieldLogger { return t.logEntry }

// Close signals the reclaimer to stop, waits for it to drain, and leaves
// the table unusable for further operations — spec.md §4.4's fib_free.
func (t *Table) Close() {
	t.closeOnce.Do(func() {
		close(t.stopCh)
		<-t.reclaimerDone
		t.log().Info("fib table closed")
	})
}

// Stats is a read-only snapshot of table diagnostics, supplementing
// spec.md with the counters BIRD exposes via "show route count" — see
// SPEC_FULL.md §6.
type Stats struct {
	Entries     uint32
	BucketCount uint32
	HashOrder   uint32
}

func (t *Table) Stats() Stats {
	ba := t.buckets.Load()
	return Stats{
		Entries:     t.entries.Load(),
		BucketCount: ba.size(),
		HashOrder:   ba.order,
	}
}

func (t *Table) checkAddrType(a Prefix) {
	if a.Type() != t.addrType {
		t.fatalf("address-type mismatch: table has %v, got %v", t.addrType, a.Type())
	}
}

// Find performs an exact lookup by prefix — spec.md §6's find.
func (t *Table) Find(a Prefix) (*Entry, bool) {
	t.checkAddrType(a)
	n := t.findNode(a)
	if n == nil {
		return nil, false
	}
	return &n.Entry, true
}

// Get finds or inserts — spec.md §6's get. On a fresh insert, created is
// true and Config.InitFn (if set) has already run. This resolves the open
// question in spec.md §9 by returning the tuple explicitly rather than
// tagging the returned pointer's low bit.
func (t *Table) Get(a Prefix) (e *Entry, created bool) {
	t.checkAddrType(a)
	return t.insertPayload(a)
}

// Route performs longest-prefix-match lookup — spec.md §6's route. It
// copies the input, then repeatedly shortens the prefix (clearing the
// newly out-of-range low bit, via Routable.Truncate) until a match is
// found or the prefix length reaches zero.
func (t *Table) Route(a Routable) (*Entry, bool) {
	t.checkAddrType(a)
	cur := a
	for {
		if n := t.findNode(cur); n != nil {
			return &n.Entry, true
		}
		if cur.PrefixLen() == 0 {
			return nil, false
		}
		cur = cur.Truncate()
	}
}

// Delete logically removes e, returning true iff this call performed the
// removal — spec.md §6's delete.
func (t *Table) Delete(e *Entry) bool {
	t.checkAddrType(e.Prefix)
	return t.deleteNode(entryToNode(e))
}

// Check walks the table, assuming no concurrent mutation, and verifies
// invariants 1–3 of spec.md §8 (list order, bucket sentinels, entry
// count) — BIRD's fib_check, see SPEC_FULL.md §6.
// It is meant for a daemon's periodic self-check hook, not just tests.
func (t *Table) Check() error {
	ba := t.buckets.Load()
	for b := uint32(0); b < ba.size(); b++ {
		s := ba.get(b)
		if s == nil {
			continue
		}
		if !s.isSentinel() {
			return &fatalError{msg: "bucket slot does not point at a sentinel"}
		}
		if s.key != reverseKey(b) {
			return &fatalError{msg: "sentinel key does not match its bucket"}
		}
	}

	var count uint32
	prev := t.head
	for {
		succ, marked := prev.loadNext()
		if marked {
			return &fatalError{msg: "reachable node observed with a marked predecessor during Check"}
		}
		if succ == nil {
			break
		}
		if succ.key < prev.key {
			return &fatalError{msg: "list order invariant violated: K(x) > K(y) for x -> y"}
		}
		if succ.key == prev.key && !prev.isSentinel() {
			return &fatalError{msg: "two non-sentinel nodes share a key with no sentinel between them"}
		}
		if !succ.isSentinel() {
			count++
		}
		prev = succ
	}
	if count != t.entries.Load() {
		return &fatalError{msg: "entries counter does not match the number of reachable payload nodes"}
	}
	return nil
}
