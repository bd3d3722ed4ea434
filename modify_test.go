package cuckoo

import "testing"

func TestInsertAndGet(t *testing.T) {
	m := NewMap[string, int]()
	inserted, err := m.Insert("a", 1)
	if err != nil || !inserted {
		t.Fatalf("Insert(a, 1) = (%v, %v), want (true, nil)", inserted, err)
	}
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}

	inserted, err = m.Insert("a", 2)
	if err != nil || inserted {
		t.Fatalf("Insert(a, 2) on existing key = (%v, %v), want (false, nil)", inserted, err)
	}
	if v, _ := m.Get("a"); v != 1 {
		t.Fatalf("Get(a) after rejected Insert = %d, want unchanged 1", v)
	}
}

func TestInsertOrAssignOverwrites(t *testing.T) {
	m := NewMap[string, int]()
	if err := m.InsertOrAssign("a", 1); err != nil {
		t.Fatalf("InsertOrAssign error: %v", err)
	}
	if err := m.InsertOrAssign("a", 2); err != nil {
		t.Fatalf("InsertOrAssign error: %v", err)
	}
	if v, ok := m.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = (%d, %v), want (2, true)", v, ok)
	}
}

func TestUpdateOnlyTouchesExistingKey(t *testing.T) {
	m := NewMap[string, int]()
	updated, err := m.Update("missing", 5)
	if err != nil || updated {
		t.Fatalf("Update on absent key = (%v, %v), want (false, nil)", updated, err)
	}
	_ = m.InsertOrAssign("k", 1)
	updated, err = m.Update("k", 9)
	if err != nil || !updated {
		t.Fatalf("Update on present key = (%v, %v), want (true, nil)", updated, err)
	}
	if v, _ := m.Get("k"); v != 9 {
		t.Fatalf("Get(k) after Update = %d, want 9", v)
	}
}

func TestErase(t *testing.T) {
	m := NewMap[string, int]()
	if m.Erase("missing") {
		t.Fatal("Erase on absent key returned true")
	}
	_ = m.InsertOrAssign("a", 1)
	if !m.Erase("a") {
		t.Fatal("Erase on present key returned false")
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("key still present after Erase")
	}
	if m.Size() != 0 {
		t.Fatalf("Size() after Erase = %d, want 0", m.Size())
	}
}

func TestCompareAndSwap(t *testing.T) {
	m := NewMap[string, int]()
	_ = m.InsertOrAssign("a", 1)

	if m.CompareAndSwap("a", 2, 3) {
		t.Fatal("CompareAndSwap succeeded with wrong old value")
	}
	if v, _ := m.Get("a"); v != 1 {
		t.Fatalf("value mutated despite failed CompareAndSwap: %d", v)
	}
	if !m.CompareAndSwap("a", 1, 3) {
		t.Fatal("CompareAndSwap failed with correct old value")
	}
	if v, _ := m.Get("a"); v != 3 {
		t.Fatalf("Get(a) after CompareAndSwap = %d, want 3", v)
	}
	if m.CompareAndSwap("missing", 0, 1) {
		t.Fatal("CompareAndSwap succeeded on absent key")
	}
}

func TestCompareAndDelete(t *testing.T) {
	m := NewMap[string, int]()
	_ = m.InsertOrAssign("a", 1)

	if m.CompareAndDelete("a", 2) {
		t.Fatal("CompareAndDelete succeeded with wrong old value")
	}
	if !m.CompareAndDelete("a", 1) {
		t.Fatal("CompareAndDelete failed with correct old value")
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("key still present after CompareAndDelete")
	}
}

func TestProcessEntryInsertUpdateDelete(t *testing.T) {
	m := NewMap[string, int]()

	err := m.ProcessEntry("a", func(old int, found bool) (int, EntryAction) {
		if found {
			t.Fatal("found=true for key never inserted")
		}
		return 10, ActionUpdate
	})
	if err != nil {
		t.Fatalf("ProcessEntry insert error: %v", err)
	}
	if v, ok := m.Get("a"); !ok || v != 10 {
		t.Fatalf("Get(a) after insert-via-ProcessEntry = (%d, %v), want (10, true)", v, ok)
	}

	err = m.ProcessEntry("a", func(old int, found bool) (int, EntryAction) {
		if !found || old != 10 {
			t.Fatalf("unexpected (old, found) = (%d, %v)", old, found)
		}
		return old + 1, ActionUpdate
	})
	if err != nil {
		t.Fatalf("ProcessEntry update error: %v", err)
	}
	if v, _ := m.Get("a"); v != 11 {
		t.Fatalf("Get(a) after update-via-ProcessEntry = %d, want 11", v)
	}

	err = m.ProcessEntry("a", func(old int, found bool) (int, EntryAction) {
		return 0, ActionDelete
	})
	if err != nil {
		t.Fatalf("ProcessEntry delete error: %v", err)
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("key still present after delete-via-ProcessEntry")
	}
}

func TestProcessEntryNoOpLeavesTableUnchanged(t *testing.T) {
	m := NewMap[string, int]()
	_ = m.InsertOrAssign("a", 1)
	err := m.ProcessEntry("a", func(old int, found bool) (int, EntryAction) {
		return old, ActionNoOp
	})
	if err != nil {
		t.Fatalf("ProcessEntry no-op error: %v", err)
	}
	if v, _ := m.Get("a"); v != 1 {
		t.Fatalf("Get(a) after no-op ProcessEntry = %d, want unchanged 1", v)
	}
}

func TestProcessEntryRecoversCallbackPanic(t *testing.T) {
	m := NewMap[string, int]()
	_ = m.InsertOrAssign("a", 1)

	err := m.ProcessEntry("a", func(old int, found bool) (int, EntryAction) {
		panic("boom")
	})
	if err == nil {
		t.Fatal("ProcessEntry did not surface the callback panic as an error")
	}
	if _, ok := err.(*CallbackError); !ok {
		t.Fatalf("error %v is not a *CallbackError", err)
	}
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("table mutated despite a panicking callback: Get(a) = (%d, %v)", v, ok)
	}
}

func TestClear(t *testing.T) {
	m := NewMap[int, int]()
	for i := 0; i < 20; i++ {
		_ = m.InsertOrAssign(i, i)
	}
	m.Clear()
	if m.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", m.Size())
	}
	for i := 0; i < 20; i++ {
		if _, ok := m.Get(i); ok {
			t.Fatalf("key %d still present after Clear", i)
		}
	}
	// the table must still be usable afterward
	if err := m.InsertOrAssign(1, 100); err != nil {
		t.Fatalf("InsertOrAssign after Clear error: %v", err)
	}
	if v, ok := m.Get(1); !ok || v != 100 {
		t.Fatalf("Get(1) after Clear+Insert = (%d, %v), want (100, true)", v, ok)
	}
}

func TestInsertDisplacesThroughCuckooPath(t *testing.T) {
	// The table starts at the minimum hashpower (16 slots) and may grow
	// only up to hashpower 4 (64 slots), so 40 plain sequential integer
	// keys force displacement chains, exercising insertAfterMiss's cuckoo
	// fallback before each automatic growth.
	m := NewMap[int, int](WithMaxHashpower[int, int](4))
	const n = 40
	for i := 0; i < n; i++ {
		if _, err := m.Insert(i, i*10); err != nil {
			t.Fatalf("Insert(%d) error: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		if v, ok := m.Get(i); !ok || v != i*10 {
			t.Fatalf("Get(%d) = (%d, %v), want (%d, true)", i, v, ok, i*10)
		}
	}
	if m.Size() != n {
		t.Fatalf("Size() = %d, want %d", m.Size(), n)
	}
}
