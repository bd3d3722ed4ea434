package cuckoo

// migrateStripe lazily reclassifies every bucket this stripe used to
// cover under the table's previous hashpower, deriving that previous
// hashpower as st.hp-1. It is only ever called for a stripe observed
// with migrated=false while st is still the live, current table state
// (every caller either re-checks loadState()==st under the stripe's own
// lock immediately before calling this, or, like LockTable and
// drainOutstandingMigrations, holds every stripe of the current state)
// — resizeDouble always drains
// outstanding migrations before starting a new one, so whenever st is
// still current, migrated=false can only mean st.hp was incremented by
// exactly one relative to the bucket contents still sitting in the low
// half of the (already doubled) bucket array. Calling this against a
// stale st, where the live table has moved on to a higher hashpower
// since st was captured, would derive the wrong previous hashpower and
// corrupt the (possibly physically shared, see bucketarray.go) bucket
// storage — that is precisely what the caller-side check rules out.
//
// This function only handles the common, non-small-table regime where
// the stripe array itself did NOT grow across the doubling that made
// this stripe's migrated flag false. In that regime oldHashpower is
// always >= log2(maxStripes), so 2^oldHashpower is an exact multiple of
// the (fixed) stripe count, which guarantees every migrating item's
// destination bucket (b + 2^oldHashpower) maps back to this same
// stripe — migration never needs to touch another stripe's lock or
// counter. The small-table regime, where the stripe array grows
// alongside hashpower, is handled eagerly under the all-stripes lock
// instead (see resize.go's migrateAllEager) and never leaves a stripe
// with migrated=false for this function to find.
func (m *Map[K, V]) migrateStripe(st *tableState[K, V], stripeIdx int) {
	oldHp := st.hp - 1
	oldBucketCount := 1 << oldHp
	numStripes := st.stripes.len()
	for b := stripeIdx; b < oldBucketCount; b += numStripes {
		m.migrateBucketInPlace(st, oldHp, b)
	}
}

// migrateBucketInPlace reclassifies bucket b's occupied slots under the
// table's current (new) hashpower: an item whose new primary or alternate
// index is no longer b moves to bucket b+2^oldHp, which is guaranteed to
// still be empty (only this bucket ever targets it).
func (m *Map[K, V]) migrateBucketInPlace(st *tableState[K, V], oldHp uint32, b int) {
	src := st.buckets.at(b)
	dstIdx := b + (1 << oldHp)
	var dst *bucket[K, V]

	for i := 0; i < bucketSlots; i++ {
		if !src.occupied[i] {
			continue
		}
		key := src.slots[i].key
		partial := src.partial[i]
		hv := computeHash(m.hasher, m.seed, key)
		newI1 := indexHash(st.hp, hv.hash)
		newI2 := altIndex(st.hp, hv.partial, newI1)
		if newI1 == b || newI2 == b {
			continue
		}
		if dst == nil {
			dst = st.buckets.at(dstIdx)
		}
		slot, ok := dst.firstEmpty()
		if !ok {
			panic("cuckoo: migration destination bucket unexpectedly full")
		}
		dst.insertAt(slot, partial, key, src.slots[i].value)
		src.eraseAt(i)
	}
}
