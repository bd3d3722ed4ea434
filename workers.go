package cuckoo

import (
	"runtime"
	"sync"
)

// minItemsPerWorker is the threshold below which parallel dispatch isn't
// worth its own overhead.
const minItemsPerWorker = 4

// calcParallelism computes how many chunks to split `items` work units
// into, and how large each chunk is.
func calcParallelism(items, cpus int) (chunkSize, chunks int) {
	if items <= minItemsPerWorker || cpus <= 1 {
		return items, 1
	}
	chunks = min(items/minItemsPerWorker, cpus)
	if chunks < 1 {
		chunks = 1
	}
	chunkSize = (items + chunks - 1) / chunks
	return chunkSize, chunks
}

// runRangePartitioned splits [0, items) into chunks and runs fn(start,
// end) on a worker pool, waiting for all chunks to finish. A panic in any
// worker is captured and returned as an error (a *CallbackError) to the
// calling goroutine once every worker has returned, so a callback panic
// inside a parallel resize surfaces to the initiating goroutine instead
// of crashing the process.
func runRangePartitioned(items, maxWorkers int, fn func(start, end int)) error {
	if items <= 0 {
		return nil
	}
	cpus := runtime.GOMAXPROCS(0)
	if maxWorkers > 0 && maxWorkers < cpus {
		cpus = maxWorkers
	}
	chunkSize, chunks := calcParallelism(items, cpus)
	if chunks <= 1 {
		return runGuarded(func() { fn(0, items) })
	}

	var wg sync.WaitGroup
	errs := make([]error, chunks)
	for c := 0; c < chunks; c++ {
		start := c * chunkSize
		end := min(start+chunkSize, items)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(i, start, end int) {
			defer wg.Done()
			errs[i] = runGuarded(func() { fn(start, end) })
		}(c, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// runGuarded runs fn, converting any panic into a *CallbackError so a
// worker failure surfaces to the initiating goroutine as an error return
// instead of crashing the process.
func runGuarded(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Panic: r}
		}
	}()
	fn()
	return nil
}
