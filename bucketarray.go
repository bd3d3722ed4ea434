package cuckoo

// bucketArray is a grow-only container of buckets addressable by bucket
// index, implementing in-place doubling by appending a second half of
// equal size. Growth never moves previously-allocated bucket
// storage: each doubling allocates a brand-new chunk exactly as large as
// the table's current size and appends it to a small (immutable, copied
// on every grow) directory. Existing bucket pointers/slices handed out
// before a resize remain valid after it, which is what lets lazy
// migration touch one stripe's buckets at a time without a stop-the-world
// rewrite of the whole array.
type bucketArray[K comparable, V any] struct {
	chunks  []bucketChunk[K, V]
	offsets []int // offsets[i] is the first global bucket index in chunks[i]
	total   int
}

type bucketChunk[K comparable, V any] struct {
	data []bucket[K, V]
}

func newBucketArray[K comparable, V any](n int, alloc Allocator[K, V]) *bucketArray[K, V] {
	return &bucketArray[K, V]{
		chunks:  []bucketChunk[K, V]{{data: alloc.AllocBuckets(n)}},
		offsets: []int{0},
		total:   n,
	}
}

// grown returns a new bucketArray with a freshly allocated second half of
// equal size appended. The receiver's chunks are reused (shared, never
// mutated) by the new value, so anything holding the old *bucketArray
// keeps a fully valid view of the buckets that existed before growth.
func (ba *bucketArray[K, V]) grown(alloc Allocator[K, V]) *bucketArray[K, V] {
	newChunk := bucketChunk[K, V]{data: alloc.AllocBuckets(ba.total)}

	chunks := make([]bucketChunk[K, V], len(ba.chunks)+1)
	copy(chunks, ba.chunks)
	chunks[len(chunks)-1] = newChunk

	offsets := make([]int, len(ba.offsets)+1)
	copy(offsets, ba.offsets)
	offsets[len(offsets)-1] = ba.total

	return &bucketArray[K, V]{chunks: chunks, offsets: offsets, total: ba.total * 2}
}

func (ba *bucketArray[K, V]) len() int {
	return ba.total
}

// at returns a pointer to the bucket at global index i. The chunk
// directory is tiny (O(log(total/initial))) so a linear scan from the
// end (most lookups land in the newest, largest chunk) is simpler and
// fast enough; there is no need for unsafe raw-pointer indexing into a
// single flat bucket slice.
func (ba *bucketArray[K, V]) at(i int) *bucket[K, V] {
	for c := len(ba.offsets) - 1; c >= 0; c-- {
		if i >= ba.offsets[c] {
			return &ba.chunks[c].data[i-ba.offsets[c]]
		}
	}
	panic("cuckoo: bucket index out of range")
}

// forEachChunkRange calls fn once per chunk overlapping [start, end),
// letting resize/rebuild/range code process contiguous slices without
// going through per-index `at` lookups.
func (ba *bucketArray[K, V]) forEachChunkRange(start, end int, fn func(data []bucket[K, V], base int)) {
	for c := 0; c < len(ba.chunks); c++ {
		chunkStart := ba.offsets[c]
		chunkEnd := chunkStart + len(ba.chunks[c].data)
		lo, hi := max(start, chunkStart), min(end, chunkEnd)
		if lo < hi {
			fn(ba.chunks[c].data[lo-chunkStart:hi-chunkStart], lo)
		}
	}
}
