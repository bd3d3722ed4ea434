package cuckoo

// LockedTable is a scoped, exclusive view over a Map obtained via
// LockTable. While held, every stripe is locked, so its methods never
// need their own retry loops or optimistic validation — the tradeoff,
// as with any global lock, is that it blocks every other operation on
// the table until Unlock is called. Intended for bulk sequences of
// operations (e.g. several related inserts) that must appear atomic as
// a whole, not for routine single-key access.
type LockedTable[K comparable, V any] struct {
	m  *Map[K, V]
	st *tableState[K, V]
}

// LockTable locks the entire table and returns a view over it. The
// caller must call Unlock when done.
func (m *Map[K, V]) LockTable() *LockedTable[K, V] {
	st := m.loadState()
	m.lockAllStripes(st)
	for m.loadState() != st {
		m.unlockAllStripes(st, false)
		st = m.loadState()
		m.lockAllStripes(st)
	}
	n := st.stripes.len()
	for i := 0; i < n; i++ {
		s := st.stripes.at(i)
		if !s.isMigrated() {
			m.migrateStripe(st, i)
			s.setMigrated(true)
		}
	}
	return &LockedTable[K, V]{m: m, st: st}
}

// Unlock releases the table, bumping every stripe's epoch so concurrent
// optimistic readers re-validate against whatever changed.
func (lt *LockedTable[K, V]) Unlock() {
	lt.m.unlockAllStripes(lt.st, true)
}

// Get looks up key without any retry loop, since the whole table is
// already held exclusively.
func (lt *LockedTable[K, V]) Get(key K) (V, bool) {
	hv := computeHash(lt.m.hasher, lt.m.seed, key)
	i1, i2 := candidateBuckets(lt.st.hp, hv)
	return scanCandidates(lt.st, i1, i2, hv, key, lt.m.equalKey)
}

// Insert adds key/value only if key is not already present.
func (lt *LockedTable[K, V]) Insert(key K, value V) bool {
	hv := computeHash(lt.m.hasher, lt.m.seed, key)
	i1, i2 := candidateBuckets(lt.st.hp, hv)

	b1 := lt.st.buckets.at(i1)
	if _, found := b1.findSlot(hv.partial, key, lt.m.equalKey); found {
		return false
	}
	if i2 != i1 {
		b2 := lt.st.buckets.at(i2)
		if _, found := b2.findSlot(hv.partial, key, lt.m.equalKey); found {
			return false
		}
	}

	if slot, ok := b1.firstEmpty(); ok {
		b1.insertAt(slot, hv.partial, key, value)
		lt.st.stripes.at(lt.st.stripes.indexFor(i1)).addCount(1)
		return true
	}
	if i2 != i1 {
		b2 := lt.st.buckets.at(i2)
		if slot, ok := b2.firstEmpty(); ok {
			b2.insertAt(slot, hv.partial, key, value)
			lt.st.stripes.at(lt.st.stripes.indexFor(i2)).addCount(1)
			return true
		}
	}

	// lockNone: every stripe in the table is already held locked for the
	// lifetime of this view, so runCuckoo/replayPath must not attempt to
	// lock any of them again — lockStripeForWrite's underlying spinlock
	// is not reentrant, and doing so would deadlock this goroutine
	// against itself.
	_, freeBucket, freeSlot, result := lt.m.runCuckoo(lt.st, i1, i2, lockNone)
	if result != cuckooFreedSlot {
		return false
	}
	b := lt.st.buckets.at(freeBucket)
	b.insertAt(freeSlot, hv.partial, key, value)
	lt.st.stripes.at(lt.st.stripes.indexFor(freeBucket)).addCount(1)
	return true
}

// Erase removes key if present, reporting whether it was.
func (lt *LockedTable[K, V]) Erase(key K) bool {
	hv := computeHash(lt.m.hasher, lt.m.seed, key)
	i1, i2 := candidateBuckets(lt.st.hp, hv)

	b1 := lt.st.buckets.at(i1)
	if slot, found := b1.findSlot(hv.partial, key, lt.m.equalKey); found {
		b1.eraseAt(slot)
		lt.st.stripes.at(lt.st.stripes.indexFor(i1)).addCount(-1)
		return true
	}
	if i2 != i1 {
		b2 := lt.st.buckets.at(i2)
		if slot, found := b2.findSlot(hv.partial, key, lt.m.equalKey); found {
			b2.eraseAt(slot)
			lt.st.stripes.at(lt.st.stripes.indexFor(i2)).addCount(-1)
			return true
		}
	}
	return false
}

// Size returns the table's current element count.
func (lt *LockedTable[K, V]) Size() int64 {
	return lt.st.stripes.sumElementCount()
}
