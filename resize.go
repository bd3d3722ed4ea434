package cuckoo

// resizeState is a single-flight gate: the goroutine that wins the CAS on
// Map.resizing performs the resize; every other goroutine that wanted to
// trigger one waits on done and then retries its own operation against
// whatever table state resulted.
type resizeState[K comparable, V any] struct {
	done chan struct{}
}

func (m *Map[K, V]) beginResize() (*resizeState[K, V], bool) {
	rs := &resizeState[K, V]{done: make(chan struct{})}
	if m.resizing.CompareAndSwap(nil, rs) {
		return rs, true
	}
	return nil, false
}

func (m *Map[K, V]) endResize(rs *resizeState[K, V]) {
	m.resizing.Store(nil)
	close(rs.done)
}

// waitForResize blocks until any in-flight resize completes. It is a
// no-op if none is in flight.
func (m *Map[K, V]) waitForResize() {
	rs := m.resizing.Load()
	if rs == nil {
		return
	}
	<-rs.done
}

// lockAllStripes locks every stripe in st, in ascending order (trivially
// deadlock-free since the array is already index-ordered).
func (m *Map[K, V]) lockAllStripes(st *tableState[K, V]) {
	n := st.stripes.len()
	for i := 0; i < n; i++ {
		st.stripes.at(i).lock()
	}
}

// unlockAllStripes releases every stripe in st. mutated controls whether
// each stripe's epoch is bumped.
func (m *Map[K, V]) unlockAllStripes(st *tableState[K, V], mutated bool) {
	n := st.stripes.len()
	for i := 0; i < n; i++ {
		if mutated {
			st.stripes.at(i).unlock()
		} else {
			st.stripes.at(i).unlockWithoutBumpingEpoch()
		}
	}
}

// drainOutstandingMigrations forces every not-yet-migrated stripe in st
// to migrate before a new doubling begins. This holds by induction: each
// doubling only ever leaves behind unmigrated stripes from the single
// hashpower step it just performed, so one drain pass before the next
// doubling is always enough to restore the invariant migrateStripe
// depends on (that oldHp == st.hp-1 is valid whenever it is called).
func (m *Map[K, V]) drainOutstandingMigrations(st *tableState[K, V]) {
	n := st.stripes.len()
	for i := 0; i < n; i++ {
		s := st.stripes.at(i)
		if !s.isMigrated() {
			m.migrateStripe(st, i)
			s.setMigrated(true)
		}
	}
}

// resizeDouble grows the table in place to the next hashpower, swapping
// in the new table state while holding every stripe of the old one. The
// bucket array always grows by appending a same-size chunk; the stripe
// array either grows too (while hashpower is still below the point where
// it caps out, in which case every bucket's new home is migrated eagerly
// under the global lock and stripe counts are recomputed from a full
// scan) or stays exactly as-is and is simply marked unmigrated again (once
// stripe count has capped out, a migrating item's destination bucket is
// guaranteed to map back to the same stripe it came from, so counts never
// need to move between stripes and migration can stay lazy).
func (m *Map[K, V]) resizeDouble() (*tableState[K, V], error) {
	rs, won := m.beginResize()
	if !won {
		m.waitForResize()
		return m.loadState(), nil
	}
	defer m.endResize(rs)

	st := m.loadState()
	m.lockAllStripes(st)

	newHp := st.hp + 1
	if newHp > m.maxHashpower.Load() {
		m.unlockAllStripes(st, false)
		return st, ErrMaxHashpowerExceeded
	}

	m.drainOutstandingMigrations(st)

	newBuckets := st.buckets.grown(m.allocator)

	var newStripes *stripeArray
	if newHp <= maxStripesLog2 {
		m.migrateAllEager(st, newHp, newBuckets)
		newStripes = newStripeArray[K, V](newHp, m.allocator, true)
		recomputeStripeCounts(newStripes, newBuckets)
	} else {
		newStripes = st.stripes
		n := newStripes.len()
		for i := 0; i < n; i++ {
			newStripes.at(i).setMigrated(false)
		}
	}

	newSt := &tableState[K, V]{hp: newHp, buckets: newBuckets, stripes: newStripes}
	m.state.Store(newSt)
	// The small-table branch mutated bucket storage shared with st (via
	// migrateAllEager) and is about to abandon st.stripes for a fresh
	// stripeArray, so releasing st's stripes must bump their epochs: a
	// reader still holding st needs that bump as its retry signal,
	// since st.stripes itself won't otherwise show anything changed. The
	// large-table branch reuses the same stripeArray and defers all
	// bucket mutation to later per-stripe lazy migration, which handles
	// its own epoch bumps when it actually happens, so no bump belongs
	// here for it.
	m.unlockAllStripes(st, newHp <= maxStripesLog2)
	return newSt, nil
}

// migrateAllEager reclassifies every existing bucket's slots under newHp
// directly into newBuckets (which already has its upper half allocated),
// used only in the small-table regime where the stripe array is about to
// be rebuilt anyway, so there is no lazy per-stripe counterpart to defer
// to.
func (m *Map[K, V]) migrateAllEager(st *tableState[K, V], newHp uint32, newBuckets *bucketArray[K, V]) {
	oldTotal := st.buckets.len()
	for b := 0; b < oldTotal; b++ {
		src := newBuckets.at(b)
		for i := 0; i < bucketSlots; i++ {
			if !src.occupied[i] {
				continue
			}
			key := src.slots[i].key
			partial := src.partial[i]
			hv := computeHash(m.hasher, m.seed, key)
			newI1 := indexHash(newHp, hv.hash)
			newI2 := altIndex(newHp, hv.partial, newI1)
			if newI1 == b || newI2 == b {
				continue
			}
			dstIdx := b + (1 << st.hp)
			dst := newBuckets.at(dstIdx)
			slot, ok := dst.firstEmpty()
			if !ok {
				panic("cuckoo: migration destination bucket unexpectedly full")
			}
			dst.insertAt(slot, partial, key, src.slots[i].value)
			src.eraseAt(i)
		}
	}
}

// recomputeStripeCounts tallies every bucket's occupied slot count into
// its covering stripe. Used after an eager migration reshuffles buckets
// across a newly-resized stripe array, where per-move increment/decrement
// bookkeeping would be more error-prone than a single full recount.
func recomputeStripeCounts[K comparable, V any](stripes *stripeArray, buckets *bucketArray[K, V]) {
	total := buckets.len()
	buckets.forEachChunkRange(0, total, func(data []bucket[K, V], base int) {
		for i := range data {
			b := &data[i]
			n := 0
			for s := 0; s < bucketSlots; s++ {
				if b.occupied[s] {
					n++
				}
			}
			if n > 0 {
				stripes.at(stripes.indexFor(base + i)).addCount(int64(n))
			}
		}
	})
}

// insertFresh inserts key/value into st, a table under construction that
// is not yet published to m.state. It uses the same stripe-locking and
// cuckoo-displacement machinery as a normal insert, with guard=false
// since no concurrent resize of st itself is possible — only concurrent
// sibling workers populating other parts of the same table.
func (m *Map[K, V]) insertFresh(st *tableState[K, V], key K, value V) {
	hv := computeHash(m.hasher, m.seed, key)
	i1 := indexHash(st.hp, hv.hash)
	i2 := altIndex(st.hp, hv.partial, i1)

	idxs, _ := m.acquireWriteStripesGuarded(st, i1, i2, false)

	b1 := st.buckets.at(i1)
	if slot, ok := b1.firstEmpty(); ok {
		b1.insertAt(slot, hv.partial, key, value)
		st.stripes.at(st.stripes.indexFor(i1)).addCount(1)
		m.unlockStripes(st, idxs, true)
		return
	}
	if i2 != i1 {
		b2 := st.buckets.at(i2)
		if slot, ok := b2.firstEmpty(); ok {
			b2.insertAt(slot, hv.partial, key, value)
			st.stripes.at(st.stripes.indexFor(i2)).addCount(1)
			m.unlockStripes(st, idxs, true)
			return
		}
	}
	m.unlockStripes(st, idxs, false)

	freedIdxs, freeBucket, freeSlot, result := m.runCuckoo(st, i1, i2, lockUnguarded)
	if result != cuckooFreedSlot {
		panic("cuckoo: rebuild target table undersized for its own contents")
	}
	b := st.buckets.at(freeBucket)
	b.insertAt(freeSlot, hv.partial, key, value)
	st.stripes.at(st.stripes.indexFor(freeBucket)).addCount(1)
	m.unlockStripes(st, freedIdxs, true)
}

// resizeRebuild replaces the table with a freshly allocated one at
// targetHp and reinserts every existing entry into it. Unlike
// resizeDouble, this never reuses bucket storage, which is what lets it
// shrink as well as grow, and is what an explicit Rehash to an arbitrary
// target size uses. Reinsertion is parallelized across workers that each
// scan a disjoint slice of the OLD bucket array and insert into the new
// table using its own stripe locks for cross-worker synchronization, the
// same way ordinary concurrent inserts synchronize with each other.
func (m *Map[K, V]) resizeRebuild(targetHp uint32) error {
	rs, won := m.beginResize()
	if !won {
		m.waitForResize()
		return nil
	}
	defer m.endResize(rs)

	oldSt := m.loadState()
	m.lockAllStripes(oldSt)

	newSt := &tableState[K, V]{
		hp:      targetHp,
		buckets: newBucketArray[K, V](1<<targetHp, m.allocator),
		stripes: newStripeArray[K, V](targetHp, m.allocator, true),
	}

	err := runRangePartitioned(oldSt.buckets.len(), int(m.maxWorkers.Load()), func(start, end int) {
		oldSt.buckets.forEachChunkRange(start, end, func(data []bucket[K, V], base int) {
			for i := range data {
				b := &data[i]
				for s := 0; s < bucketSlots; s++ {
					if b.occupied[s] {
						m.insertFresh(newSt, b.slots[s].key, b.slots[s].value)
					}
				}
			}
		})
	})
	if err != nil {
		m.unlockAllStripes(oldSt, false)
		return err
	}

	m.state.Store(newSt)
	m.unlockAllStripes(oldSt, false)
	return nil
}

// Rehash explicitly resizes the table, via a full rebuild, to the
// smallest hashpower (at least minHashpower) whose capacity is at least
// n entries; this may grow or shrink the table. It ignores MinLoadFactor
// (that floor only governs automatic growth) but still honors
// MaxHashpower.
func (m *Map[K, V]) Rehash(n int) error {
	targetHp := hashpowerFor(n)
	if targetHp > m.maxHashpower.Load() {
		return ErrMaxHashpowerExceeded
	}
	return m.resizeRebuild(targetHp)
}

// Reserve ensures the table can hold n entries without an automatic
// resize, growing (never shrinking) as needed.
func (m *Map[K, V]) Reserve(n int) error {
	st := m.loadState()
	targetHp := hashpowerFor(n)
	if targetHp <= st.hp {
		return nil
	}
	if targetHp > m.maxHashpower.Load() {
		return ErrMaxHashpowerExceeded
	}
	return m.resizeRebuild(targetHp)
}

// maybeGrow triggers an automatic fast-double resize after an insert
// found no free slot reachable from its candidate buckets. It refuses
// with ErrMaxHashpowerExceeded if st is already at MaxHashpower, and with
// ErrLoadFactorTooLow if the current load factor is below MinLoadFactor.
func (m *Map[K, V]) maybeGrow(st *tableState[K, V]) error {
	if st.hp >= m.maxHashpower.Load() {
		return ErrMaxHashpowerExceeded
	}
	if m.LoadFactor() < m.MinLoadFactor() {
		return ErrLoadFactorTooLow
	}
	_, err := m.resizeDouble()
	return err
}
