package cuckoo

// Config collects NewMap options via the standard functional-options
// pattern.
type Config[K comparable, V any] struct {
	sizeHint      int
	hasher        HashFunc[K]
	equal         EqualFunc[V]
	allocator     Allocator[K, V]
	minLoadFactor float64
	maxHashpower  uint32
	maxWorkers    int
}

// Option configures a new Map.
type Option[K comparable, V any] func(*Config[K, V])

// WithPresize sizes the initial table so it can hold sizeHint entries
// without an automatic resize.
func WithPresize[K comparable, V any](sizeHint int) Option[K, V] {
	return func(c *Config[K, V]) { c.sizeHint = sizeHint }
}

// WithHasher installs a custom key hash function in place of the
// default runtime-derived one.
func WithHasher[K comparable, V any](h HashFunc[K]) Option[K, V] {
	return func(c *Config[K, V]) { c.hasher = h }
}

// WithEqual installs a custom value-equality function, consulted only by
// CompareAndSwap/CompareAndDelete.
func WithEqual[K comparable, V any](eq EqualFunc[V]) Option[K, V] {
	return func(c *Config[K, V]) { c.equal = eq }
}

// WithAllocator installs a custom Allocator for bucket/stripe storage.
func WithAllocator[K comparable, V any](a Allocator[K, V]) Option[K, V] {
	return func(c *Config[K, V]) { c.allocator = a }
}

// WithMinLoadFactor sets the floor below which an automatic resize
// refuses to grow the table (ErrLoadFactorTooLow).
func WithMinLoadFactor[K comparable, V any](f float64) Option[K, V] {
	return func(c *Config[K, V]) { c.minLoadFactor = f }
}

// WithMaxHashpower caps automatic and explicit growth.
func WithMaxHashpower[K comparable, V any](hp uint32) Option[K, V] {
	return func(c *Config[K, V]) { c.maxHashpower = hp }
}

// WithMaxWorkers caps the worker pool used by parallel resize passes.
func WithMaxWorkers[K comparable, V any](n int) Option[K, V] {
	return func(c *Config[K, V]) { c.maxWorkers = n }
}
