package cuckoo

import "testing"

func TestBucketInsertFindErase(t *testing.T) {
	var b bucket[string, int]

	slot, ok := b.firstEmpty()
	if !ok || slot != 0 {
		t.Fatalf("firstEmpty on empty bucket = (%d, %v), want (0, true)", slot, ok)
	}

	b.insertAt(0, 0x42, "alpha", 1)
	b.insertAt(1, 0x43, "beta", 2)

	if s, found := b.findSlot(0x42, "alpha", equalDefault[string]); !found || s != 0 {
		t.Fatalf("findSlot(alpha) = (%d, %v), want (0, true)", s, found)
	}
	if _, found := b.findSlot(0x42, "gamma", equalDefault[string]); found {
		t.Fatal("findSlot matched on wrong key despite matching tag")
	}
	if _, found := b.findSlot(0x99, "alpha", equalDefault[string]); found {
		t.Fatal("findSlot matched despite mismatched tag")
	}

	if b.isFull() {
		t.Fatal("bucket reported full with two slots remaining empty")
	}

	b.eraseAt(0)
	if b.occupied[0] {
		t.Fatal("slot still occupied after eraseAt")
	}
	if _, found := b.findSlot(0x42, "alpha", equalDefault[string]); found {
		t.Fatal("erased key still found")
	}
}

func TestBucketIsFull(t *testing.T) {
	var b bucket[int, int]
	for i := 0; i < bucketSlots; i++ {
		b.insertAt(i, uint8(i), i, i*10)
	}
	if !b.isFull() {
		t.Fatal("bucket with every slot occupied reports not full")
	}
	if _, ok := b.firstEmpty(); ok {
		t.Fatal("firstEmpty found a slot in a full bucket")
	}
}

func TestBucketClear(t *testing.T) {
	var b bucket[int, string]
	b.insertAt(0, 1, 10, "ten")
	b.insertAt(2, 3, 30, "thirty")
	b.clear()
	for i := 0; i < bucketSlots; i++ {
		if b.occupied[i] {
			t.Fatalf("slot %d still occupied after clear", i)
		}
	}
}
