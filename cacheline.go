package cuckoo

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// cacheLineSize is used to pad stripes so adjacent stripes never share a
// cache line; without it, a writer locking
// one stripe would invalidate its neighbors' cache lines on every other
// core, defeating the whole point of striping.
const cacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
