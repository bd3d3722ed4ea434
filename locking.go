package cuckoo

import "sort"

// ensureMigratedForRead is called by an optimistic reader that observed
// migrated=false on a stripe. It takes the write lock, migrates the
// stripe if still necessary, and releases — the caller must then restart
// its read from scratch.
//
// st must be re-validated as still current *after* locking the stripe
// and *before* migrating: in the large-table regime a doubling reuses
// the same stripe object across the resize (see resizeDouble), so a
// goroutine that captured st just before such a resize can still reach
// this point with a stale (pre-doubling) hashpower baked into st.hp.
// migrateStripe derives the pre-doubling hashpower as st.hp-1, so
// calling it against a stale st would migrate under the wrong bit and
// wrongly mark the (shared) stripe migrated, corrupting the physically
// shared bucket storage and skipping the real migration the current
// state still needs. Holding the stripe lock before this check is what
// makes it safe: a resize cannot publish a new state without first
// taking every stripe's lock itself, so once we hold it, st either is
// still current or we bail out below without having touched anything.
func (m *Map[K, V]) ensureMigratedForRead(st *tableState[K, V], stripeIdx int) {
	s := st.stripes.at(stripeIdx)
	s.lock()
	if !s.isMigrated() && m.loadState() == st {
		m.migrateStripe(st, stripeIdx)
		s.setMigrated(true)
	}
	s.unlockWithoutBumpingEpoch()
}

// lockStripeForWrite locks the stripe and migrates it inline if
// necessary, leaving it locked for the caller. See ensureMigratedForRead
// for why the loadState()==st check must happen after locking and
// before migrating, not after.
func (m *Map[K, V]) lockStripeForWrite(st *tableState[K, V], stripeIdx int) {
	s := st.stripes.at(stripeIdx)
	s.lock()
	if !s.isMigrated() && m.loadState() == st {
		m.migrateStripe(st, stripeIdx)
		s.setMigrated(true)
	}
}

// sortUniqueStripes sorts and deduplicates a small slice of stripe
// indices in place, returning the deduplicated prefix. Used to acquire
// one, two, or three stripes in ascending order without double-locking a
// stripe that covers more than one of the candidate buckets.
func sortUniqueStripes(idxs []int) []int {
	sort.Ints(idxs)
	out := idxs[:0]
	for i, v := range idxs {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// lockStripesAscending locks every (already deduplicated, sorted) stripe
// index in idxs, then verifies the table state hasn't changed since the
// caller loaded st. On a state change it releases everything it took
// (without bumping any epoch, since nothing was mutated) and reports
// false so the caller restarts against the fresh state.
func (m *Map[K, V]) lockStripesAscending(st *tableState[K, V], idxs []int) bool {
	return m.lockStripesAscendingGuarded(st, idxs, true)
}

// lockStripesAscendingGuarded is lockStripesAscending with the
// state-changed check made optional. guard=false is only correct when st
// is a table under construction that no other goroutine can resize out
// from under itself (e.g. a rebuild target not yet published to m.state),
// where concurrent workers still need real stripe locks against each
// other but the "did the whole table get replaced" check is meaningless.
func (m *Map[K, V]) lockStripesAscendingGuarded(st *tableState[K, V], idxs []int, guard bool) bool {
	for _, idx := range idxs {
		m.lockStripeForWrite(st, idx)
	}
	if guard && m.loadState() != st {
		for _, idx := range idxs {
			st.stripes.at(idx).unlockWithoutBumpingEpoch()
		}
		return false
	}
	return true
}

// unlockStripes releases every stripe index in idxs, bumping each one's
// epoch iff mutated is true.
func (m *Map[K, V]) unlockStripes(st *tableState[K, V], idxs []int, mutated bool) {
	for _, idx := range idxs {
		if mutated {
			st.stripes.at(idx).unlock()
		} else {
			st.stripes.at(idx).unlockWithoutBumpingEpoch()
		}
	}
}

// acquireWriteStripes acquires the (up to two) stripes covering bucket
// indices i1 and i2, in ascending stripe-index order, deadlock-free. It
// returns ok=false if the table state changed mid-acquisition; the
// caller must reload the state and restart.
func (m *Map[K, V]) acquireWriteStripes(st *tableState[K, V], i1, i2 int) (idxs []int, ok bool) {
	return m.acquireWriteStripesGuarded(st, i1, i2, true)
}

// acquireWriteStripesGuarded is acquireWriteStripes with the
// state-changed check made optional; see lockStripesAscendingGuarded.
func (m *Map[K, V]) acquireWriteStripesGuarded(st *tableState[K, V], i1, i2 int, guard bool) (idxs []int, ok bool) {
	var buf [2]int
	buf[0] = st.stripes.indexFor(i1)
	buf[1] = st.stripes.indexFor(i2)
	idxs = sortUniqueStripes(buf[:])
	if !m.lockStripesAscendingGuarded(st, idxs, guard) {
		return nil, false
	}
	return idxs, true
}
