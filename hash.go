package cuckoo

import (
	"math/bits"
	"math/rand/v2"
	"unsafe"
)

// mixConstant is the fixed odd 64-bit MurmurHash2 mixer used to derive
// the alternate bucket from a primary index and partial tag. It must
// never change: fast-doubling depends on the alternate-bucket
// relationship it induces (see altIndex).
const mixConstant uint64 = 0xc6a4a7935bd1e995

// HashFunc computes a 64-bit hash of a key given a per-table random seed.
// A nil HashFunc passed to NewMap selects the default, which reuses Go's
// own built-in map hash for K (see defaultHasher below) so callers don't
// pay for a second, redundant hash implementation.
type HashFunc[K comparable] func(key K, seed uint64) uint64

// EqualFunc reports whether two values are equal. It is only consulted by
// the CompareAndSwap/CompareAndDelete extensions; core lookup/insert/erase
// only ever compares keys, with Go's == (see Map.equalKey).
type EqualFunc[V any] func(a, b V) bool

// hashed bundles a full hash with its partial tag, computed once per
// operation and threaded through lookup/insert/erase/replay.
type hashed struct {
	hash    uint64
	partial uint8
}

func computeHash[K comparable](hasher HashFunc[K], seed uint64, key K) hashed {
	h := hasher(key, seed)
	return hashed{hash: h, partial: foldHash(h)}
}

// foldHash XOR-folds a 64-bit hash down to a single byte (64->32->16->8).
// It is a pure function of h, independent of the table's hashpower: this
// independence is what lets fast-double relocate a key to at most one of
// two buckets without ever recomputing BFS paths.
func foldHash(h uint64) uint8 {
	h ^= h >> 32
	h ^= h >> 16
	h ^= h >> 8
	return uint8(h)
}

// indexHash computes the primary bucket for a hash under hashpower hp.
func indexHash(hp uint32, h uint64) int {
	return int(h & ((uint64(1) << hp) - 1))
}

// altIndex computes the other candidate bucket for a given primary bucket
// index i and partial tag. It is an involution: altIndex(hp, p,
// altIndex(hp, p, i)) == i, which is what makes the cuckoo-path replay and
// the fast-double migration both reversible and local.
func altIndex(hp uint32, partial uint8, i int) int {
	mask := (uint64(1) << hp) - 1
	return int(uint64(i) ^ (((uint64(partial) + 1) * mixConstant) & mask))
}

// defaultHasher returns a HashFunc[K] and EqualFunc[V] derived from Go's
// own built-in map implementation for (K, V), obtained via the runtime's
// maptype without ever allocating a map[K]V: take the type descriptor of
// a zero map, recover its *runtime maptype, and call its Hasher/Equal
// fields directly. It is unsafe in the sense of depending on runtime
// internal layout (documented below), not in the sense of being unsound
// for well-behaved K/V.
func defaultHasher[K comparable, V any]() (HashFunc[K], EqualFunc[V]) {
	var m map[K]V
	mt := iTypeOf(m).mapType()
	hasher := mt.Hasher
	equal := mt.Elem.equal

	hf := func(key K, seed uint64) uint64 {
		return uint64(hasher(noescape(unsafe.Pointer(&key)), uintptr(seed)))
	}
	ef := func(a, b V) bool {
		return equal(noescape(unsafe.Pointer(&a)), noescape(unsafe.Pointer(&b)))
	}
	return hf, ef
}

// defaultSeed returns a fresh random per-table seed.
func defaultSeed() uint64 {
	return rand.Uint64()
}

// --- runtime maptype reflection. These struct layouts must track
// runtime/type.go; they are the minimal prefix needed to reach Hasher
// and Elem.equal on a map's runtime type descriptor. ---

type rtype struct {
	size       uintptr
	ptrdata    uintptr
	hash       uint32
	tflag      uint8
	align      uint8
	fieldAlign uint8
	kind       uint8
	equal      func(unsafe.Pointer, unsafe.Pointer) bool
	gcdata     *byte
	str        int32
	ptrToThis  int32
}

func (t *rtype) mapType() *mapRType {
	return (*mapRType)(unsafe.Pointer(t))
}

type mapRType struct {
	rtype
	Key    *rtype
	Elem   *rtype
	Group  *rtype
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

type emptyInterface struct {
	Type *rtype
	Data unsafe.Pointer
}

func iTypeOf(a any) *rtype {
	eface := *(*emptyInterface)(unsafe.Pointer(&a))
	return (*rtype)(noescape(unsafe.Pointer(eface.Type)))
}

// nextPow2 returns the smallest power of two >= n, with a floor of 1.
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// log2 returns floor(log2(n)) for n >= 1.
func log2(n int) uint32 {
	return uint32(bits.Len(uint(n)) - 1)
}
