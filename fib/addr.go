package fib

import (
	"hash/maphash"
	"net/netip"
)

// AddrType distinguishes the two address families a Table can be built
// over. A table is monomorphic in its address type for its whole
// lifetime — Find/Get/Route/Delete reject a mismatched Prefix via fatalf
// (Delete checks the Prefix stored in the Entry it is given).
type AddrType uint8

const (
	AddrIPv4 AddrType = iota
	AddrIPv6
)

func (a AddrType) String() string {
	switch a {
	case AddrIPv4:
		return "ipv4"
	case AddrIPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Prefix is anything hashable and comparable enough to be stored as a FIB
// entry's key. Implementations are expected to be small value types.
type Prefix interface {
	Type() AddrType
	// Hash returns H(A) from spec.md §2 — any well-distributed 32-bit hash
	// of the prefix's network bits and length is sufficient; the table
	// bit-reverses it internally for split-ordering.
	Hash() uint32
	Equal(Prefix) bool
	// Copy returns a value independent of the argument passed to Get/Find,
	// safe to store in an Entry beyond the call's lifetime.
	Copy() Prefix
}

// Routable is a Prefix that additionally supports prefix-shortening, the
// operation Route repeats while walking toward a longest-prefix match.
type Routable interface {
	Prefix
	PrefixLen() int
	// Truncate returns the same address with PrefixLen reduced by one.
	// Called only when PrefixLen() > 0.
	Truncate() Routable
}

var hashSeed = maphash.MakeSeed()

func hashBytes(b []byte) uint32 {
	var h maphash.Hash
	h.SetSeed(hashSeed)
	h.Write(b)
	return uint32(h.Sum64())
}

// IPv4Prefix is the concrete Prefix/Routable for AddrIPv4 tables, backed
// by net/netip.
type IPv4Prefix struct {
	p netip.Prefix
}

// NewIPv4Prefix wraps an already-4-in-netip Prefix. It panics if p is not
// a valid IPv4 prefix, matching the "caller guarantees address-family
// correctness" contract Find/Get/Route/Delete rely on.
func NewIPv4Prefix(p netip.Prefix) IPv4Prefix {
	if !p.Addr().Is4() {
		panic("fib: IPv4Prefix requires an IPv4 address")
	}
	return IPv4Prefix{p: p.Masked()}
}

func (p IPv4Prefix) Type() AddrType { return AddrIPv4 }

func (p IPv4Prefix) Hash() uint32 {
	a := p.p.Addr().As4()
	return hashBytes([]byte{a[0], a[1], a[2], a[3], byte(p.p.Bits())})
}

func (p IPv4Prefix) Equal(other Prefix) bool {
	o, ok := other.(IPv4Prefix)
	return ok && o.p == p.p
}

func (p IPv4Prefix) Copy() Prefix { return p }

func (p IPv4Prefix) PrefixLen() int { return p.p.Bits() }

func (p IPv4Prefix) Truncate() Routable {
	n := p.p.Bits() - 1
	np, err := p.p.Addr().Prefix(n)
	if err != nil {
		panic(err)
	}
	return IPv4Prefix{p: np}
}

func (p IPv4Prefix) Netip() netip.Prefix { return p.p }

func (p IPv4Prefix) String() string { return p.p.String() }

// IPv6Prefix is the concrete Prefix/Routable for AddrIPv6 tables.
type IPv6Prefix struct {
	p netip.Prefix
}

func NewIPv6Prefix(p netip.Prefix) IPv6Prefix {
	if !p.Addr().Is6() || p.Addr().Is4In6() {
		panic("fib: IPv6Prefix requires a native IPv6 address")
	}
	return IPv6Prefix{p: p.Masked()}
}

func (p IPv6Prefix) Type() AddrType { return AddrIPv6 }

func (p IPv6Prefix) Hash() uint32 {
	a := p.p.Addr().As16()
	buf := make([]byte, 17)
	copy(buf, a[:])
	buf[16] = byte(p.p.Bits())
	return hashBytes(buf)
}

func (p IPv6Prefix) Equal(other Prefix) bool {
	o, ok := other.(IPv6Prefix)
	return ok && o.p == p.p
}

func (p IPv6Prefix) Copy() Prefix { return p }

func (p IPv6Prefix) PrefixLen() int { return p.p.Bits() }

func (p IPv6Prefix) Truncate() Routable {
	n := p.p.Bits() - 1
	np, err := p.p.Addr().Prefix(n)
	if err != nil {
		panic(err)
	}
	return IPv6Prefix{p: np}
}

func (p IPv6Prefix) Netip() netip.Prefix { return p.p }

func (p IPv6Prefix) String() string { return p.p.String() }
