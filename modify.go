package cuckoo

// insertPolicy selects how doInsert treats an already-present key.
type insertPolicy int

const (
	policyInsertOnly insertPolicy = iota // fail if the key already exists
	policyUpsert                         // overwrite if present, insert otherwise
	policyUpdateOnly                     // only touch an existing key, fail if absent
)

// doInsert is the shared implementation behind Insert, InsertOrAssign,
// and Update. It retries from scratch whenever a stripe acquisition
// observes a concurrent resize.
func (m *Map[K, V]) doInsert(key K, value V, policy insertPolicy) (acted bool, err error) {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		idxs, ok := m.acquireWriteStripes(st, i1, i2)
		if !ok {
			continue
		}

		b1 := st.buckets.at(i1)
		if slot, found := b1.findSlot(hv.partial, key, m.equalKey); found {
			if policy == policyInsertOnly {
				m.unlockStripes(st, idxs, false)
				return false, nil
			}
			b1.slots[slot].value = value
			m.unlockStripes(st, idxs, true)
			return true, nil
		}
		if i2 != i1 {
			b2 := st.buckets.at(i2)
			if slot, found := b2.findSlot(hv.partial, key, m.equalKey); found {
				if policy == policyInsertOnly {
					m.unlockStripes(st, idxs, false)
					return false, nil
				}
				b2.slots[slot].value = value
				m.unlockStripes(st, idxs, true)
				return true, nil
			}
		}
		if policy == policyUpdateOnly {
			m.unlockStripes(st, idxs, false)
			return false, nil
		}

		switch m.insertAfterMiss(st, idxs, i1, i2, hv, key, value) {
		case cuckooFreedSlot:
			return true, nil
		case cuckooDuplicateKey:
			// Retry from scratch: the top of the loop's own
			// findSlot scan will see the concurrently-inserted key
			// and apply policy against it (overwrite for upsert,
			// reject for insert-only, update for update-only).
			continue
		case cuckooRetryState:
			continue
		case cuckooTableFull:
			if err := m.maybeGrow(st); err != nil {
				return false, err
			}
			continue
		}
	}
}

// insertAfterMiss handles the case where key was confirmed absent from
// both candidate buckets. idxs must already be locked covering i1/i2.
// It tries a direct empty-slot insert first, then falls back to freeing
// a slot via cuckoo displacement. On any outcome other than
// cuckooFreedSlot, the caller holds no locks afterward.
func (m *Map[K, V]) insertAfterMiss(st *tableState[K, V], idxs []int, i1, i2 int, hv hashed, key K, value V) cuckooResult {
	b1 := st.buckets.at(i1)
	if slot, ok := b1.firstEmpty(); ok {
		b1.insertAt(slot, hv.partial, key, value)
		st.stripes.at(st.stripes.indexFor(i1)).addCount(1)
		m.unlockStripes(st, idxs, true)
		return cuckooFreedSlot
	}
	if i2 != i1 {
		b2 := st.buckets.at(i2)
		if slot, ok := b2.firstEmpty(); ok {
			b2.insertAt(slot, hv.partial, key, value)
			st.stripes.at(st.stripes.indexFor(i2)).addCount(1)
			m.unlockStripes(st, idxs, true)
			return cuckooFreedSlot
		}
	}

	m.unlockStripes(st, idxs, false)
	freedIdxs, freeBucket, freeSlot, result := m.runCuckoo(st, i1, i2, lockGuarded)
	if result != cuckooFreedSlot {
		return result
	}

	// runCuckoo's search and replay ran with i1/i2 unlocked for most of
	// their duration (search takes no lock at all; replay only takes the
	// final hop's locks right before returning). Another writer could
	// have inserted this same key into i1 or i2 during that window, so
	// the candidate buckets must be re-checked before writing: otherwise
	// the key would end up duplicated across its two candidate buckets.
	//
	// The unlock below doesn't bump the epoch: this call never mutated
	// i1/i2 itself (the duplicate was found, not written), and every
	// relocation replay actually performed along the path already bumped
	// its own stripe's epoch on its own release, so any reader racing
	// this window still has a correct retry signal to key off.
	if _, found := st.buckets.at(i1).findSlot(hv.partial, key, m.equalKey); found {
		m.unlockStripes(st, freedIdxs, false)
		return cuckooDuplicateKey
	}
	if i2 != i1 {
		if _, found := st.buckets.at(i2).findSlot(hv.partial, key, m.equalKey); found {
			m.unlockStripes(st, freedIdxs, false)
			return cuckooDuplicateKey
		}
	}

	b := st.buckets.at(freeBucket)
	b.insertAt(freeSlot, hv.partial, key, value)
	st.stripes.at(st.stripes.indexFor(freeBucket)).addCount(1)
	m.unlockStripes(st, freedIdxs, true)
	return cuckooFreedSlot
}

// Insert adds key/value only if key is not already present, reporting
// whether it did so.
func (m *Map[K, V]) Insert(key K, value V) (bool, error) {
	return m.doInsert(key, value, policyInsertOnly)
}

// InsertOrAssign adds key/value, overwriting any existing value for key.
func (m *Map[K, V]) InsertOrAssign(key K, value V) error {
	_, err := m.doInsert(key, value, policyUpsert)
	return err
}

// Upsert sets key to value unconditionally, inserting it if absent and
// overwriting it if present; it is InsertOrAssign under another name.
// The modifier-function flavor of upsert (run an arbitrary
// old-value-to-new-value function instead of writing a fixed value) is
// ProcessEntry with a ProcessEntryFn that always returns ActionUpdate.
func (m *Map[K, V]) Upsert(key K, value V) error {
	return m.InsertOrAssign(key, value)
}

// Update overwrites the value for key only if it is already present,
// reporting whether it did so.
func (m *Map[K, V]) Update(key K, value V) (bool, error) {
	return m.doInsert(key, value, policyUpdateOnly)
}

// Erase removes key if present, reporting whether it was.
func (m *Map[K, V]) Erase(key K) bool {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		idxs, ok := m.acquireWriteStripes(st, i1, i2)
		if !ok {
			continue
		}

		b1 := st.buckets.at(i1)
		if slot, found := b1.findSlot(hv.partial, key, m.equalKey); found {
			b1.eraseAt(slot)
			st.stripes.at(st.stripes.indexFor(i1)).addCount(-1)
			m.unlockStripes(st, idxs, true)
			return true
		}
		if i2 != i1 {
			b2 := st.buckets.at(i2)
			if slot, found := b2.findSlot(hv.partial, key, m.equalKey); found {
				b2.eraseAt(slot)
				st.stripes.at(st.stripes.indexFor(i2)).addCount(-1)
				m.unlockStripes(st, idxs, true)
				return true
			}
		}
		m.unlockStripes(st, idxs, false)
		return false
	}
}

// CompareAndSwap replaces the value for key with newValue only if key is
// present with a value equal to old, reporting whether it did so.
func (m *Map[K, V]) CompareAndSwap(key K, old, newValue V) bool {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		idxs, ok := m.acquireWriteStripes(st, i1, i2)
		if !ok {
			continue
		}

		if swapped, done := m.tryCompareAndSwap(st, i1, idxs, hv, key, old, newValue); done {
			return swapped
		}
		if i2 != i1 {
			if swapped, done := m.tryCompareAndSwap(st, i2, idxs, hv, key, old, newValue); done {
				return swapped
			}
		}
		m.unlockStripes(st, idxs, false)
		return false
	}
}

func (m *Map[K, V]) tryCompareAndSwap(st *tableState[K, V], bucketIdx int, idxs []int, hv hashed, key K, old, newValue V) (swapped, done bool) {
	b := st.buckets.at(bucketIdx)
	slot, found := b.findSlot(hv.partial, key, m.equalKey)
	if !found {
		return false, false
	}
	if !m.equal(b.slots[slot].value, old) {
		m.unlockStripes(st, idxs, false)
		return false, true
	}
	b.slots[slot].value = newValue
	m.unlockStripes(st, idxs, true)
	return true, true
}

// CompareAndDelete removes key only if present with a value equal to
// old, reporting whether it did so.
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		idxs, ok := m.acquireWriteStripes(st, i1, i2)
		if !ok {
			continue
		}

		if deleted, done := m.tryCompareAndDelete(st, i1, idxs, hv, key, old); done {
			return deleted
		}
		if i2 != i1 {
			if deleted, done := m.tryCompareAndDelete(st, i2, idxs, hv, key, old); done {
				return deleted
			}
		}
		m.unlockStripes(st, idxs, false)
		return false
	}
}

func (m *Map[K, V]) tryCompareAndDelete(st *tableState[K, V], bucketIdx int, idxs []int, hv hashed, key K, old V) (deleted, done bool) {
	b := st.buckets.at(bucketIdx)
	slot, found := b.findSlot(hv.partial, key, m.equalKey)
	if !found {
		return false, false
	}
	if !m.equal(b.slots[slot].value, old) {
		m.unlockStripes(st, idxs, false)
		return false, true
	}
	b.eraseAt(slot)
	st.stripes.at(st.stripes.indexFor(bucketIdx)).addCount(-1)
	m.unlockStripes(st, idxs, true)
	return true, true
}

// EntryAction reports what a ProcessEntry callback decided to do with
// the entry it was given.
type EntryAction int

const (
	ActionNoOp EntryAction = iota
	ActionUpdate
	ActionDelete
)

// ProcessEntryFn inspects (and optionally replaces or deletes) the
// current value for a key. found reports whether the key was present;
// when it wasn't, old is the zero value. Returning ActionUpdate when
// found is false inserts newVal as a fresh entry.
type ProcessEntryFn[V any] func(old V, found bool) (newVal V, action EntryAction)

// ProcessEntry is the general-purpose read-modify-write primitive, able
// to express an insert, update, or erase in one call (Insert, Update and
// Erase themselves have their own paths): it atomically reads the current value
// for key (if any), passes it to fn, and applies whatever action fn
// returns, all under the same stripe lock(s) so no other writer can
// observe an intermediate state. A panic inside fn is recovered and
// returned as a *CallbackError, leaving the table exactly as it was
// before the call.
func (m *Map[K, V]) ProcessEntry(key K, fn ProcessEntryFn[V]) error {
	for {
		st := m.loadState()
		hv := computeHash(m.hasher, m.seed, key)
		i1, i2 := candidateBuckets(st.hp, hv)
		idxs, ok := m.acquireWriteStripes(st, i1, i2)
		if !ok {
			continue
		}

		foundBucket, foundIdx, foundSlot, found := m.locateInCandidates(st, i1, i2, hv, key)

		var oldVal V
		if found {
			oldVal = foundBucket.slots[foundSlot].value
		}
		newVal, action, cbErr := safeProcessEntry(fn, oldVal, found)
		if cbErr != nil {
			m.unlockStripes(st, idxs, false)
			return cbErr
		}

		switch action {
		case ActionNoOp:
			m.unlockStripes(st, idxs, false)
			return nil
		case ActionDelete:
			if !found {
				m.unlockStripes(st, idxs, false)
				return nil
			}
			foundBucket.eraseAt(foundSlot)
			st.stripes.at(st.stripes.indexFor(foundIdx)).addCount(-1)
			m.unlockStripes(st, idxs, true)
			return nil
		case ActionUpdate:
			if found {
				foundBucket.slots[foundSlot].value = newVal
				m.unlockStripes(st, idxs, true)
				return nil
			}
			switch m.insertAfterMiss(st, idxs, i1, i2, hv, key, newVal) {
			case cuckooFreedSlot:
				return nil
			case cuckooDuplicateKey:
				// Retry from scratch: locateInCandidates will
				// now see the concurrently-inserted key and fn
				// will be invoked with found=true as it should.
				continue
			case cuckooRetryState:
				continue
			case cuckooTableFull:
				if err := m.maybeGrow(st); err != nil {
					return err
				}
				continue
			}
		}
	}
}

func (m *Map[K, V]) locateInCandidates(st *tableState[K, V], i1, i2 int, hv hashed, key K) (b *bucket[K, V], bucketIdx, slot int, found bool) {
	b1 := st.buckets.at(i1)
	if slot, ok := b1.findSlot(hv.partial, key, m.equalKey); ok {
		return b1, i1, slot, true
	}
	if i2 != i1 {
		b2 := st.buckets.at(i2)
		if slot, ok := b2.findSlot(hv.partial, key, m.equalKey); ok {
			return b2, i2, slot, true
		}
	}
	return nil, 0, 0, false
}

func safeProcessEntry[V any](fn ProcessEntryFn[V], old V, found bool) (newVal V, action EntryAction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Panic: r}
		}
	}()
	newVal, action = fn(old, found)
	return
}

// Clear removes every entry, keeping the table's current capacity.
func (m *Map[K, V]) Clear() {
	st := m.loadState()
	m.lockAllStripes(st)

	total := st.buckets.len()
	st.buckets.forEachChunkRange(0, total, func(data []bucket[K, V], base int) {
		for i := range data {
			data[i].clear()
		}
	})

	n := st.stripes.len()
	for i := 0; i < n; i++ {
		s := st.stripes.at(i)
		s.addCount(-s.elementCount())
		s.setMigrated(true)
	}
	m.unlockAllStripes(st, true)
}
