// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count below which work stays on the calling
// goroutine.
const DefaultThreshold = 1000

// Parallelize splits [0, items) into at most GOMAXPROCS contiguous chunks
// and calls fn(start, end) for each chunk concurrently. It returns after
// every chunk is done. fn must only write to indices inside its own range.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > items {
		workers = items
	}
	chunk := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunk {
		end := start + chunk
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) sequentially when items is at
// most threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}
