package kernels

import "sync"

// ParallelFor runs fn over contiguous chunks of [0, n) on up to workers
// goroutines. Chunks never overlap, so fn may write element-indexed outputs
// without locking. With workers <= 1 or n <= minChunk it runs inline.
func ParallelFor(n, minChunk, workers int, fn func(start, end int)) {
	if workers <= 1 || n <= minChunk {
		fn(0, n)
		return
	}

	if minChunk < 1 {
		minChunk = 1
	}
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}
