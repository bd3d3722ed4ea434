package cuckoo

import (
	"testing"
	"time"
)

func TestLockedTableInsertGetErase(t *testing.T) {
	m := NewMap[string, int]()
	lt := m.LockTable()

	if !lt.Insert("a", 1) {
		t.Fatal("LockedTable.Insert(a, 1) returned false on a fresh table")
	}
	if lt.Insert("a", 2) {
		t.Fatal("LockedTable.Insert(a, 2) returned true for an already-present key")
	}
	if v, ok := lt.Get("a"); !ok || v != 1 {
		t.Fatalf("LockedTable.Get(a) = (%d, %v), want (1, true)", v, ok)
	}
	if lt.Size() != 1 {
		t.Fatalf("LockedTable.Size() = %d, want 1", lt.Size())
	}
	if !lt.Erase("a") {
		t.Fatal("LockedTable.Erase(a) returned false for a present key")
	}
	if lt.Erase("a") {
		t.Fatal("LockedTable.Erase(a) returned true on an already-absent key")
	}
	lt.Unlock()

	if _, ok := m.Get("a"); ok {
		t.Fatal("key reappeared after Unlock despite being erased under the lock")
	}
}

func TestLockedTableInsertForcesCuckooDisplacement(t *testing.T) {
	// A single insert under LockTable never needs a third candidate
	// bucket, so it can't exercise Insert's runCuckoo fallback. Filling
	// both candidate buckets for a key before inserting it forces that
	// fallback to run while every stripe in the table is already held
	// locked by this same goroutine — the case that previously
	// self-deadlocked against runCuckoo's own stripe locking.
	m := NewMap[int, int](WithMaxHashpower[int, int](6))
	lt := m.LockTable()

	st := m.loadState()
	const key = 777
	hv := computeHash(m.hasher, m.seed, key)
	i1, i2 := candidateBuckets(st.hp, hv)

	b1 := st.buckets.at(i1)
	for slot := 0; slot < bucketSlots; slot++ {
		b1.insertAt(slot, uint8(slot+1), -(slot + 1), -(slot + 1))
	}
	if i2 != i1 {
		b2 := st.buckets.at(i2)
		for slot := 0; slot < bucketSlots; slot++ {
			b2.insertAt(slot, uint8(slot+10), -(slot + 100), -(slot + 100))
		}
	}

	if !lt.Insert(key, 42) {
		t.Fatal("LockedTable.Insert returned false despite a free slot reachable by displacement")
	}
	if v, ok := lt.Get(key); !ok || v != 42 {
		t.Fatalf("LockedTable.Get(key) after displacement insert = (%d, %v), want (42, true)", v, ok)
	}
	lt.Unlock()

	if v, ok := m.Get(key); !ok || v != 42 {
		t.Fatalf("Get(key) after Unlock = (%d, %v), want (42, true)", v, ok)
	}
}

func TestLockedTableBlocksConcurrentWriters(t *testing.T) {
	m := NewMap[int, int]()
	_ = m.InsertOrAssign(1, 1)
	lt := m.LockTable()

	done := make(chan struct{})
	go func() {
		_ = m.InsertOrAssign(2, 2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("concurrent InsertOrAssign completed while the table was held by LockTable")
	case <-time.After(20 * time.Millisecond):
	}

	lt.Unlock()
	<-done

	if v, ok := m.Get(2); !ok || v != 2 {
		t.Fatalf("Get(2) after Unlock = (%d, %v), want (2, true)", v, ok)
	}
}
