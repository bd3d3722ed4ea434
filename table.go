package cuckoo

import (
	"math"
	"math/bits"
	"sync/atomic"
)

// minHashpower is the lowest hashpower NewMap will ever pick:
// hashpower = ceil(log2(initial_capacity/bucketSlots)), minimum 2.
const minHashpower = 2

// defaultMinLoadFactor is the default floor below which an automatic
// resize refuses to grow (ErrLoadFactorTooLow).
const defaultMinLoadFactor = 1.0 / 16

// defaultMaxHashpower is effectively "no cap": 62 bits of bucket index
// space, the largest hashpower whose bucket count 1<<hp still fits in a
// signed 64-bit int.
const defaultMaxHashpower = 62

// tableState is every piece of table metadata that must change together,
// atomically, under the all-stripes lock: hashpower, the bucket array,
// and the stripe array. Operations load this pointer once at the start
// and compare-by-identity afterward to detect a concurrent resize
// without needing three separately-synchronized fields.
type tableState[K comparable, V any] struct {
	hp      uint32
	buckets *bucketArray[K, V]
	stripes *stripeArray
}

// Map is a high-performance concurrent associative container backed by
// bucketized cuckoo hashing with two candidate buckets per key, a
// striped seqlock array for lock-free optimistic reads, lazy per-stripe
// migration during in-place doubling, and BFS cuckoo-path replay to free
// a slot in a full table. See the package doc for the concurrency model.
//
// A Map must not be copied after first use.
type Map[K comparable, V any] struct {
	state atomic.Pointer[tableState[K, V]]

	resizing atomic.Pointer[resizeState[K, V]]

	hasher    HashFunc[K]
	equal     EqualFunc[V]
	allocator Allocator[K, V]
	seed      uint64

	minLoadFactorBits atomic.Uint64
	maxHashpower      atomic.Uint32
	maxWorkers        atomic.Int32
}

// NewMap creates a new Map. With no options it starts at the minimum
// hashpower, uses Go's own built-in hash/equality for K/V (see
// defaultHasher), and imposes no load-factor floor beyond the package
// default.
func NewMap[K comparable, V any](opts ...Option[K, V]) *Map[K, V] {
	var cfg Config[K, V]
	cfg.minLoadFactor = defaultMinLoadFactor
	cfg.maxHashpower = defaultMaxHashpower
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Map[K, V]{}
	m.hasher = cfg.hasher
	m.equal = cfg.equal
	if m.hasher == nil {
		m.hasher, m.equal = defaultHasher[K, V]()
	} else if m.equal == nil {
		_, m.equal = defaultHasher[K, V]()
	}
	m.allocator = cfg.allocator
	if m.allocator == nil {
		m.allocator = defaultAllocator[K, V]{}
	}
	m.seed = defaultSeed()
	m.minLoadFactorBits.Store(math.Float64bits(cfg.minLoadFactor))
	m.maxHashpower.Store(cfg.maxHashpower)
	m.maxWorkers.Store(int32(cfg.maxWorkers))

	hp := hashpowerFor(cfg.sizeHint)
	st := &tableState[K, V]{
		hp:      hp,
		buckets: newBucketArray[K, V](1<<hp, m.allocator),
		stripes: newStripeArray[K, V](hp, m.allocator, true),
	}
	m.state.Store(st)
	return m
}

// hashpowerFor computes ceil(log2(sizeHint/bucketSlots)), floored at
// minHashpower.
func hashpowerFor(sizeHint int) uint32 {
	if sizeHint <= 0 {
		return minHashpower
	}
	buckets := (sizeHint + bucketSlots - 1) / bucketSlots
	hp := uint32(bits.Len(uint(max(buckets-1, 0))))
	if hp < minHashpower {
		hp = minHashpower
	}
	return hp
}

func (m *Map[K, V]) loadState() *tableState[K, V] {
	return m.state.Load()
}

// Size returns the sum of every stripe's element counter. This may be
// momentarily inconsistent under concurrent writers.
func (m *Map[K, V]) Size() int {
	st := m.loadState()
	return int(st.stripes.sumElementCount())
}

// Len is an alias for Size.
func (m *Map[K, V]) Len() int { return m.Size() }

// IsEmpty reports whether the table currently holds no entries.
func (m *Map[K, V]) IsEmpty() bool { return m.Size() == 0 }

// Capacity returns bucket_count() * bucketSlots.
func (m *Map[K, V]) Capacity() int {
	st := m.loadState()
	return st.buckets.len() * bucketSlots
}

// LoadFactor returns Size()/Capacity() as a float64.
func (m *Map[K, V]) LoadFactor() float64 {
	cap := m.Capacity()
	if cap == 0 {
		return 0
	}
	return float64(m.Size()) / float64(cap)
}

// Hashpower returns the current hashpower (log2 of bucket count).
func (m *Map[K, V]) Hashpower() uint32 {
	return m.loadState().hp
}

// MinLoadFactor returns the current floor below which an automatic
// resize refuses to grow the table.
func (m *Map[K, V]) MinLoadFactor() float64 {
	return math.Float64frombits(m.minLoadFactorBits.Load())
}

// SetMinLoadFactor atomically updates the load-factor floor.
func (m *Map[K, V]) SetMinLoadFactor(f float64) {
	m.minLoadFactorBits.Store(math.Float64bits(f))
}

// MaxHashpower returns the current growth cap.
func (m *Map[K, V]) MaxHashpower() uint32 {
	return m.maxHashpower.Load()
}

// SetMaxHashpower atomically updates the growth cap.
func (m *Map[K, V]) SetMaxHashpower(hp uint32) {
	m.maxHashpower.Store(hp)
}

// MaxWorkerThreads returns the current worker-pool cap for parallel
// resize passes. Zero means "use GOMAXPROCS".
func (m *Map[K, V]) MaxWorkerThreads() int {
	return int(m.maxWorkers.Load())
}

// SetMaxWorkerThreads atomically updates the worker-pool cap.
func (m *Map[K, V]) SetMaxWorkerThreads(n int) {
	m.maxWorkers.Store(int32(n))
}

// candidateBuckets computes the two candidate bucket indices for a hash
// under the given hashpower.
func candidateBuckets(hp uint32, hv hashed) (i1, i2 int) {
	i1 = indexHash(hp, hv.hash)
	i2 = altIndex(hp, hv.partial, i1)
	return
}
