// Package utils holds small helpers shared by the other packages.
package utils

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// Threads returns the number of goroutines MultiThread uses: one per logical core.
func Threads() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}

	return runtime.NumCPU()
}

// MultiThread runs f for every integer in [start, end), spread across Threads() goroutines, and
// returns once every call has finished. Each goroutine takes opsPerThread consecutive values at a
// time. f must be safe to call concurrently for different values.
//
// MultiThread should be run sequentially, not in a separate goroutine.
func MultiThread(start, end int, f func(int), opsPerThread int) {
	if end <= start {
		return
	} else if opsPerThread < 1 {
		opsPerThread = 1
	}

	numThreads := Threads()
	if chunks := (end - start + opsPerThread - 1) / opsPerThread; chunks < numThreads {
		numThreads = chunks
	}

	var next atomic.Int64
	next.Store(int64(start))

	var wg sync.WaitGroup
	wg.Add(numThreads)
	for t := 0; t < numThreads; t++ {
		go func() {
			defer wg.Done()

			for {
				i := int(next.Add(int64(opsPerThread))) - opsPerThread
				if i >= end {
					return
				}

				e := min(i+opsPerThread, end)
				for ; i < e; i++ {
					f(i)
				}
			}
		}()
	}

	wg.Wait()
}
