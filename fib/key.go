package fib

import "math/bits"

// reverseKey computes K(A) = bitreverse32(H(A)), the split-ordered sort
// key. Reversing the hash's bits means the set of keys sharing a bucket
// index under any power-of-two mask forms a contiguous run in list order,
// so doubling the table only ever inserts new split points — it never
// reorders existing elements.
func reverseKey(hash uint32) uint32 {
	return bits.Reverse32(hash)
}

// parentBucket returns the bucket whose sentinel must already exist
// before bucket b's sentinel can be linked: b with its highest set bit
// cleared. This is the classic split-ordered-list parent-bucket step
// (Shalev & Shavit 2006) and terminates at bucket 0, whose sentinel is
// created directly by New.
func parentBucket(b uint32) uint32 {
	if b == 0 {
		return 0
	}
	msb := uint32(1) << (31 - bits.LeadingZeros32(b))
	return b &^ msb
}
