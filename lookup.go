package cuckoo

// Get performs an optimistic lookup: it never takes a stripe lock on the
// common path. It snapshots each candidate stripe's epoch, scans both
// candidate buckets, and re-validates the epochs; if anything changed it
// retries, falling back to taking the stripe lock(s) only after a
// bounded spin budget is exhausted, so a pathologically busy writer
// can't make a reader spin forever.
//
// Go's atomic loads already provide the acquire-ordering needed when
// re-reading the epoch after the value copy, so no separate fence
// primitive is needed.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		x1 := st.stripes.indexFor(i1)
		x2 := st.stripes.indexFor(i2)
		s1 := st.stripes.at(x1)
		var s2 *stripe
		if x2 != x1 {
			s2 = st.stripes.at(x2)
		}

		v, found, retry := m.tryOptimisticRead(st, s1, s2, i1, i2, hv, key)
		if !retry {
			return v, found
		}
		if m.loadState() != st {
			continue
		}
	}
}

func (m *Map[K, V]) tryOptimisticRead(
	st *tableState[K, V], s1, s2 *stripe, i1, i2 int, hv hashed, key K,
) (value V, found, retry bool) {
	spins := 0
	for {
		if !s1.isMigrated() {
			m.ensureMigratedForRead(st, st.stripes.indexFor(i1))
			return value, false, true
		}
		if s2 != nil && !s2.isMigrated() {
			m.ensureMigratedForRead(st, st.stripes.indexFor(i2))
			return value, false, true
		}

		e1 := s1.readEpoch()
		l1 := s1.isLocked()
		var e2 uint64
		var l2 bool
		if s2 != nil {
			e2 = s2.readEpoch()
			l2 = s2.isLocked()
		}
		if l1 || l2 {
			if trySpin(&spins) {
				continue
			}
			return m.lockedRead(st, i1, i2, hv, key)
		}

		v, ok := scanCandidates(st, i1, i2, hv, key, m.equalKey)

		e1b := s1.readEpoch()
		l1b := s1.isLocked()
		stable := e1 == e1b && !l1b
		if stable && s2 != nil {
			e2b := s2.readEpoch()
			l2b := s2.isLocked()
			stable = e2 == e2b && !l2b
		}
		if stable {
			return v, ok, false
		}
		if trySpin(&spins) {
			continue
		}
		return m.lockedRead(st, i1, i2, hv, key)
	}
}

// lockedRead is the guaranteed-progress fallback once the optimistic spin
// budget is exhausted: take the stripe(s) for real, scan, release without
// bumping the epoch (nothing was mutated).
func (m *Map[K, V]) lockedRead(st *tableState[K, V], i1, i2 int, hv hashed, key K) (value V, found, retry bool) {
	idxs, ok := m.acquireWriteStripes(st, i1, i2)
	if !ok {
		return value, false, true
	}
	v, ok2 := scanCandidates(st, i1, i2, hv, key, m.equalKey)
	m.unlockStripes(st, idxs, false)
	return v, ok2, false
}

func (m *Map[K, V]) equalKey(a, b K) bool { return a == b }

// scanCandidates scans both candidate buckets for a matching occupied
// slot, returning a copy of its value. Callers are responsible for
// whatever consistency protocol (optimistic validation or holding the
// stripe lock) surrounds the call.
func scanCandidates[K comparable, V any](
	st *tableState[K, V], i1, i2 int, hv hashed, key K, equal func(K, K) bool,
) (value V, ok bool) {
	b1 := st.buckets.at(i1)
	if slot, found := b1.findSlot(hv.partial, key, equal); found {
		return b1.slots[slot].value, true
	}
	if i2 != i1 {
		b2 := st.buckets.at(i2)
		if slot, found := b2.findSlot(hv.partial, key, equal); found {
			return b2.slots[slot].value, true
		}
	}
	return value, false
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// MustGet returns the value for key, or ErrKeyNotFound if absent. This is
// the one lookup that reports absence as an error rather than a boolean.
func (m *Map[K, V]) MustGet(key K) (V, error) {
	v, ok := m.Get(key)
	if !ok {
		return v, ErrKeyNotFound
	}
	return v, nil
}
