package cuckoo

// maxStripes is the hard cap on stripe count.
const maxStripes = 1 << 16

// maxStripesLog2 is log2(maxStripes); once hashpower reaches this, the
// stripe array stops growing and every further doubling relies purely on
// lazy per-stripe migration rather than the small-table eager path.
const maxStripesLog2 = 16

// stripeArray is a fixed-size array of seqlocks, at most maxStripes long.
// A bucket at index b maps to stripe b & (len-1).
type stripeArray struct {
	s    []stripe
	mask uint32
}

func stripeCountFor(hp uint32) int {
	if hp >= maxStripesLog2 {
		return maxStripes
	}
	return 1 << hp
}

func newStripeArray[K comparable, V any](hp uint32, alloc Allocator[K, V], migrated bool) *stripeArray {
	n := stripeCountFor(hp)
	sa := &stripeArray{s: alloc.AllocStripes(n), mask: uint32(n - 1)}
	for i := range sa.s {
		sa.s[i].init(migrated)
	}
	return sa
}

func (sa *stripeArray) len() int {
	return len(sa.s)
}

// indexFor maps a bucket index to its covering stripe.
func (sa *stripeArray) indexFor(bucketIdx int) int {
	return int(uint32(bucketIdx) & sa.mask)
}

func (sa *stripeArray) at(i int) *stripe {
	return &sa.s[i]
}

// sumElementCount sums every stripe's element counter. This sum equals
// the occupied-slot count once the table is quiescent.
func (sa *stripeArray) sumElementCount() int64 {
	var total int64
	for i := range sa.s {
		total += sa.s[i].elementCount()
	}
	return total
}
