package cuckoo

// Range calls fn once for every key/value pair currently in the table,
// stopping early if fn returns false. It takes one stripe's write lock
// at a time rather than the whole table, so a long-running Range doesn't
// block every other operation — the tradeoff is that it never observes
// a single atomic snapshot of the whole table: entries inserted or moved
// across stripes mid-Range may or may not be seen, the same weak
// consistency guarantee Go's own sync.Map.Range offers.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	st := m.loadState()
	n := st.stripes.len()
	for i := 0; i < n; i++ {
		s := st.stripes.at(i)
		s.lock()
		if !s.isMigrated() && m.loadState() == st {
			m.migrateStripe(st, i)
			s.setMigrated(true)
		}
		cont := rangeStripeBuckets(st, i, fn)
		s.unlockWithoutBumpingEpoch()
		if !cont {
			return
		}
	}
}

func rangeStripeBuckets[K comparable, V any](st *tableState[K, V], stripeIdx int, fn func(K, V) bool) bool {
	n := st.stripes.len()
	total := st.buckets.len()
	for b := stripeIdx; b < total; b += n {
		bk := st.buckets.at(b)
		for s := 0; s < bucketSlots; s++ {
			if bk.occupied[s] && !fn(bk.slots[s].key, bk.slots[s].value) {
				return false
			}
		}
	}
	return true
}

// Clone returns a new Map with an independent copy of every entry,
// starting from the same configuration (hasher, equality, allocator,
// load-factor floor, growth cap, worker cap) as the receiver.
func (m *Map[K, V]) Clone() *Map[K, V] {
	dst := &Map[K, V]{
		hasher:    m.hasher,
		equal:     m.equal,
		allocator: m.allocator,
		seed:      m.seed,
	}
	dst.minLoadFactorBits.Store(m.minLoadFactorBits.Load())
	dst.maxHashpower.Store(m.maxHashpower.Load())
	dst.maxWorkers.Store(m.maxWorkers.Load())

	hp := m.loadState().hp
	dst.state.Store(&tableState[K, V]{
		hp:      hp,
		buckets: newBucketArray[K, V](1<<hp, dst.allocator),
		stripes: newStripeArray[K, V](hp, dst.allocator, true),
	})

	m.Range(func(k K, v V) bool {
		_ = dst.InsertOrAssign(k, v)
		return true
	})
	return dst
}
