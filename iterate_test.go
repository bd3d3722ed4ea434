package cuckoo

import "testing"

func TestRangeVisitsEveryEntry(t *testing.T) {
	m := NewMap[int, int]()
	const n = 200
	want := make(map[int]int, n)
	for i := 0; i < n; i++ {
		_ = m.InsertOrAssign(i, i*3)
		want[i] = i * 3
	}

	seen := make(map[int]int, n)
	m.Range(func(k, v int) bool {
		seen[k] = v
		return true
	})

	if len(seen) != len(want) {
		t.Fatalf("Range visited %d entries, want %d", len(seen), len(want))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Fatalf("Range value for %d = %d, want %d", k, seen[k], v)
		}
	}
}

func TestRangeStopsEarly(t *testing.T) {
	m := NewMap[int, int]()
	for i := 0; i < 50; i++ {
		_ = m.InsertOrAssign(i, i)
	}
	count := 0
	m.Range(func(k, v int) bool {
		count++
		return count < 5
	})
	if count != 5 {
		t.Fatalf("Range stopped after %d calls, want exactly 5", count)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewMap[string, int]()
	_ = m.InsertOrAssign("a", 1)
	_ = m.InsertOrAssign("b", 2)

	clone := m.Clone()
	if clone.Size() != m.Size() {
		t.Fatalf("Clone().Size() = %d, want %d", clone.Size(), m.Size())
	}
	if v, ok := clone.Get("a"); !ok || v != 1 {
		t.Fatalf("clone.Get(a) = (%d, %v), want (1, true)", v, ok)
	}

	_ = m.InsertOrAssign("a", 999)
	_ = clone.Erase("b")

	if v, _ := clone.Get("a"); v != 1 {
		t.Fatalf("mutating the original changed the clone: clone.Get(a) = %d, want unchanged 1", v)
	}
	if _, ok := m.Get("b"); !ok {
		t.Fatal("erasing from the clone erased from the original too")
	}
}
