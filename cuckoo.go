package cuckoo

// maxCuckooPathDepth bounds how many hops the breadth-first search for a
// free slot will explore before giving up. Five hops matches the depth
// at which displacement chains in a lightly-loaded table become
// vanishingly rare to need; exceeding it is treated the same as
// exhausting the search queue below.
const maxCuckooPathDepth = 5

// maxBFSQueueSize bounds the total number of buckets the search will
// visit. With bucketSlots branches per visited bucket and two roots, the
// queue can in principle grow to roughly 2*sum(bucketSlots^d) for d up to
// maxCuckooPathDepth; this cap is a generous approximation of that bound
// used purely as a "give up and report the table full" backstop.
const maxBFSQueueSize = 4096

// maxCuckooRetries bounds how many times runCuckoo will restart its
// breadth-first search after a path-replay validation failure (another
// writer mutated a bucket along the path between search and replay)
// before giving up and reporting the table full. This keeps a
// pathologically contended table from spinning indefinitely instead of
// surfacing back to the caller, which can then fall back to a resize.
const maxCuckooRetries = 8

// cuckooResult is the outcome of a runCuckoo displacement search.
type cuckooResult int

const (
	// cuckooFreedSlot means a slot was freed; the returned bucket/slot is
	// ready for the caller's insert, and the returned stripe indices are
	// still held locked for that insert to use.
	cuckooFreedSlot cuckooResult = iota
	// cuckooTableFull means no free slot could be reached within the
	// search bounds; the caller should trigger a resize and retry.
	cuckooTableFull
	// cuckooRetryState means the table was resized while the search was
	// in flight; the caller must reload state and restart from scratch.
	cuckooRetryState
	// cuckooDuplicateKey means the freed slot was claimed, but a
	// candidate-bucket re-check right before the write found that some
	// other writer had inserted the same key while the path search and
	// replay held no lock on i1/i2. The caller holds no locks afterward
	// and must restart from scratch.
	cuckooDuplicateKey
)

// lockMode controls how replayPath and runCuckoo acquire the stripes a
// displacement path touches.
type lockMode int

const (
	// lockGuarded locks each stripe normally and aborts if the table was
	// resized mid-acquisition. Used against the live, published state.
	lockGuarded lockMode = iota
	// lockUnguarded locks each stripe normally but skips the
	// resize-in-flight check, for a tableState under construction that no
	// concurrent resize can reach yet (see insertFresh).
	lockUnguarded
	// lockNone performs no locking or unlocking at all: the caller
	// already holds every stripe in the table (see LockedTable), and
	// locking one again would deadlock against its own non-reentrant
	// spinlock.
	lockNone
)

// bfsNode is one visited bucket in the breadth-first search.
type bfsNode struct {
	bucket int
	depth  int
	parent int // index into the node slice, -1 for a root
	slot   int // slot in parent's bucket used to reach this node; -1 for a root
}

// pathStep is one bucket along a reconstructed displacement path, in
// root-to-leaf order. slot is the index within the PREVIOUS step's
// bucket that holds the item to relocate into this step's bucket; it is
// unused (and meaningless) for step 0.
type pathStep struct {
	bucket int
	slot   int
}

// slotSearch explores outward from the two candidate buckets for key,
// following the alternate-bucket relationship induced by each occupied
// slot's partial tag, until it finds a bucket with a free slot. It reads
// bucket contents without taking any stripe lock: the result is only a
// candidate path, revalidated slot-by-slot during replay.
func (m *Map[K, V]) slotSearch(st *tableState[K, V], i1, i2 int) (nodes []bfsNode, foundIdx int, ok bool) {
	nodes = make([]bfsNode, 0, 64)
	nodes = append(nodes,
		bfsNode{bucket: i1, depth: 0, parent: -1, slot: -1},
		bfsNode{bucket: i2, depth: 0, parent: -1, slot: -1},
	)

	for head := 0; head < len(nodes); head++ {
		n := nodes[head]
		b := st.buckets.at(n.bucket)
		if _, empty := b.firstEmpty(); empty {
			return nodes, head, true
		}
		if n.depth >= maxCuckooPathDepth {
			continue
		}
		for slot := 0; slot < bucketSlots; slot++ {
			if !b.occupied[slot] {
				continue
			}
			if len(nodes) >= maxBFSQueueSize {
				return nil, 0, false
			}
			neighbor := altIndex(st.hp, b.partial[slot], n.bucket)
			nodes = append(nodes, bfsNode{bucket: neighbor, depth: n.depth + 1, parent: head, slot: slot})
		}
	}
	return nil, 0, false
}

// reconstructPath walks the parent chain from the found node back to its
// root and returns it in root-to-leaf order.
func reconstructPath(nodes []bfsNode, foundIdx int) []pathStep {
	var chain []int
	for idx := foundIdx; idx != -1; idx = nodes[idx].parent {
		chain = append(chain, idx)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	path := make([]pathStep, len(chain))
	for i, idx := range chain {
		path[i] = pathStep{bucket: nodes[idx].bucket, slot: nodes[idx].slot}
	}
	return path
}

// tryMoveSlot relocates the occupant of fromBucket[slotIdx] into
// toBucket, revalidating that the move is still legal: the source slot
// must still be occupied and its partial tag must still route to
// toBucket (the only check needed, since the tag already determines the
// bucket pair a key belongs to — there is no need to recompute or
// compare the full key). The destination must still have a free slot.
func (m *Map[K, V]) tryMoveSlot(st *tableState[K, V], fromBucket, slotIdx, toBucket int) bool {
	from := st.buckets.at(fromBucket)
	if !from.occupied[slotIdx] {
		return false
	}
	partial := from.partial[slotIdx]
	if altIndex(st.hp, partial, fromBucket) != toBucket {
		return false
	}
	to := st.buckets.at(toBucket)
	destSlot, empty := to.firstEmpty()
	if !empty {
		return false
	}
	to.insertAt(destSlot, partial, from.slots[slotIdx].key, from.slots[slotIdx].value)
	from.eraseAt(slotIdx)
	return true
}

// replayPath locks buckets one hop at a time, in leaf-to-root order, and
// relocates each occupant toward the free slot found by slotSearch. The
// final hop (the one touching the original candidate buckets i1/i2)
// additionally locks both of their stripes and leaves them locked on
// success, since the caller still needs them to perform its own insert.
// Every intermediate hop locks only the two stripes it touches and fully
// releases them once done. mode controls how (and whether) stripes get
// locked at all: lockGuarded and lockUnguarded both take real locks,
// differing only in whether a resize-in-flight check runs alongside;
// lockNone is for a caller that already holds every stripe in the table
// (LockedTable), where replayPath must not lock or unlock anything and
// instead just performs each hop's move directly.
func (m *Map[K, V]) replayPath(st *tableState[K, V], i1, i2 int, path []pathStep, mode lockMode) (idxs []int, freeBucket, freeSlot int, ok bool) {
	if len(path) == 0 {
		return nil, 0, 0, false
	}
	if len(path) == 1 {
		var acquired []int
		if mode != lockNone {
			var lockOK bool
			acquired, lockOK = m.acquireWriteStripesGuarded(st, i1, i2, mode == lockGuarded)
			if !lockOK {
				return nil, 0, 0, false
			}
		}
		root := path[0].bucket
		b := st.buckets.at(root)
		slot, empty := b.firstEmpty()
		if !empty {
			if mode != lockNone {
				m.unlockStripes(st, acquired, false)
			}
			return nil, 0, 0, false
		}
		return acquired, root, slot, true
	}

	idx1 := st.stripes.indexFor(i1)
	idx2 := st.stripes.indexFor(i2)

	for depth := len(path) - 1; depth >= 1; depth-- {
		fromBucket := path[depth-1].bucket
		toBucket := path[depth].bucket
		slotIdx := path[depth].slot

		if depth == 1 {
			if mode == lockNone {
				if !m.tryMoveSlot(st, fromBucket, slotIdx, toBucket) {
					return nil, 0, 0, false
				}
				return nil, fromBucket, slotIdx, true
			}
			buf := []int{idx1, idx2, st.stripes.indexFor(toBucket)}
			all := sortUniqueStripes(buf)
			if !m.lockStripesAscendingGuarded(st, all, mode == lockGuarded) {
				return nil, 0, 0, false
			}
			if !m.tryMoveSlot(st, fromBucket, slotIdx, toBucket) {
				m.unlockStripes(st, all, false)
				return nil, 0, 0, false
			}
			toIdx := st.stripes.indexFor(toBucket)
			var keep []int
			for _, x := range all {
				if x == toIdx && x != idx1 && x != idx2 {
					m.unlockStripes(st, []int{x}, true)
					continue
				}
				keep = append(keep, x)
			}
			return keep, fromBucket, slotIdx, true
		}

		if mode == lockNone {
			if !m.tryMoveSlot(st, fromBucket, slotIdx, toBucket) {
				return nil, 0, 0, false
			}
			continue
		}

		buf := []int{st.stripes.indexFor(fromBucket), st.stripes.indexFor(toBucket)}
		pair := sortUniqueStripes(buf)
		if !m.lockStripesAscendingGuarded(st, pair, mode == lockGuarded) {
			return nil, 0, 0, false
		}
		moved := m.tryMoveSlot(st, fromBucket, slotIdx, toBucket)
		m.unlockStripes(st, pair, moved)
		if !moved {
			return nil, 0, 0, false
		}
	}
	return nil, 0, 0, false
}

// runCuckoo frees a slot reachable from candidate buckets i1/i2 by
// repeated search-then-replay, restarting the search from scratch when
// replay finds the path stale. On success it returns the bucket/slot now
// free and, unless mode is lockNone, the stripe indices (covering i1 and
// i2) still locked for the caller's own insert.
func (m *Map[K, V]) runCuckoo(st *tableState[K, V], i1, i2 int, mode lockMode) (idxs []int, freeBucket, freeSlot int, result cuckooResult) {
	for attempt := 0; attempt < maxCuckooRetries; attempt++ {
		nodes, foundIdx, ok := m.slotSearch(st, i1, i2)
		if !ok {
			return nil, 0, 0, cuckooTableFull
		}
		path := reconstructPath(nodes, foundIdx)
		resIdxs, fb, fs, replayOK := m.replayPath(st, i1, i2, path, mode)
		if replayOK {
			return resIdxs, fb, fs, cuckooFreedSlot
		}
		if mode == lockGuarded && m.loadState() != st {
			return nil, 0, 0, cuckooRetryState
		}
	}
	return nil, 0, 0, cuckooTableFull
}
