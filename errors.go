package cuckoo

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the table's public operations. They are
// plain stdlib errors (errors.New), matching the rest
// of the example pack: none of the retrieved repos wires a third-party
// errors library, so there is nothing on-domain to adopt here beyond the
// standard library.
var (
	// ErrLoadFactorTooLow is returned by an insert path that would need
	// to trigger an automatic resize, when the current load factor is
	// below the configured floor (MinLoadFactor). Explicit Rehash/Reserve
	// calls never return this error.
	ErrLoadFactorTooLow = errors.New("cuckoo: load factor too low to grow automatically")

	// ErrMaxHashpowerExceeded is returned by any resize path (automatic
	// or explicit) that would grow the table past MaxHashpower.
	ErrMaxHashpowerExceeded = errors.New("cuckoo: resize would exceed max hashpower")

	// ErrKeyNotFound is returned only by the value-returning MustGet
	// helper; every other lookup reports presence as a boolean.
	ErrKeyNotFound = errors.New("cuckoo: key not found")
)

// CallbackError wraps a panic recovered from a user-supplied hash,
// equality, or ProcessEntry-style callback. The table's invariants are
// preserved across a callback failure: no occupancy bit is set and no
// stripe counter is incremented for a mutation that had not yet
// committed when the callback panicked.
type CallbackError struct {
	Panic any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("cuckoo: user callback failed: %v", e.Panic)
}

func (e *CallbackError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}
