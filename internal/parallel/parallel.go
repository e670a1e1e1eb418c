// Package parallel fans row-wise CPU kernels out over goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled bool // Whether parallel execution is enabled.
	Workers int  // Number of worker goroutines to use.
	MinRows int  // Below this many rows the work runs on the calling goroutine.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled: n > 1,
		Workers: n,
		MinRows: 32,
	}
}

// Rows calls f with contiguous [start, end) ranges that together cover [0, n).
//
// Ranges never overlap, so f may write to disjoint rows of a shared output
// without locking. Falls back to a single f(0, n) call when parallelism is
// disabled or n is small.
func Rows(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	if !cfg.Enabled || cfg.Workers < 2 || n < cfg.MinRows {
		f(0, n)
		return
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinRows/2, 1)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}
