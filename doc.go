// Package cuckoo implements a concurrent, resizable associative container
// built on bucketized cuckoo hashing with partial-key tags, a striped
// seqlock array for optimistic reads, lazy per-stripe migration during
// in-place doubling, and a BFS cuckoo-path search with replay for
// resolving full buckets.
//
// The design follows libcuckoo-style concurrent cuckoo hashing: every key
// has two candidate buckets; a lookup validates against a per-stripe
// seqlock without ever taking a lock on the common path; writers lock at
// most two (occasionally three, during cuckoo replay) stripes at a time,
// always in ascending stripe-index order to avoid deadlock.
//
// There is no reference stability across resizes: Get returns a copy of
// the stored value, never a handle into table storage. There is no
// iteration order guarantee, and no wait-free progress guarantee for
// readers under an adversarial writer population.
package cuckoo
