package cuckoo

import "testing"

// simulateLargeTableDoubling publishes a new tableState that reuses the
// same stripe array object as the old one (as resizeDouble does once
// hashpower has capped the stripe count), without migrating anything,
// so tests can exercise the stale-st path a goroutine that captured the
// old tableState just before such a resize would hit.
func simulateLargeTableDoubling[K comparable, V any](m *Map[K, V], oldSt *tableState[K, V]) *tableState[K, V] {
	newBuckets := oldSt.buckets.grown(m.allocator)
	newSt := &tableState[K, V]{hp: oldSt.hp + 1, buckets: newBuckets, stripes: oldSt.stripes}
	m.state.Store(newSt)
	return newSt
}

func TestLockStripeForWriteSkipsMigrationForStaleState(t *testing.T) {
	m := NewMap[int, int]()
	oldSt := m.loadState()
	newSt := simulateLargeTableDoubling(m, oldSt)

	const idx = 0
	oldSt.stripes.at(idx).setMigrated(false)

	m.lockStripeForWrite(oldSt, idx)
	if oldSt.stripes.at(idx).isMigrated() {
		t.Fatal("lockStripeForWrite migrated a stripe against a stale tableState")
	}
	oldSt.stripes.at(idx).unlockWithoutBumpingEpoch()

	m.lockStripeForWrite(newSt, idx)
	if !newSt.stripes.at(idx).isMigrated() {
		t.Fatal("lockStripeForWrite did not migrate a stripe against the current tableState")
	}
	newSt.stripes.at(idx).unlockWithoutBumpingEpoch()
}

func TestEnsureMigratedForReadSkipsMigrationForStaleState(t *testing.T) {
	m := NewMap[int, int]()
	oldSt := m.loadState()
	newSt := simulateLargeTableDoubling(m, oldSt)

	const idx = 0
	oldSt.stripes.at(idx).setMigrated(false)

	m.ensureMigratedForRead(oldSt, idx)
	if oldSt.stripes.at(idx).isMigrated() {
		t.Fatal("ensureMigratedForRead migrated a stripe against a stale tableState")
	}

	m.ensureMigratedForRead(newSt, idx)
	if !newSt.stripes.at(idx).isMigrated() {
		t.Fatal("ensureMigratedForRead did not migrate a stripe against the current tableState")
	}
}
