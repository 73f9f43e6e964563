// Package parallelcrypto fans a batch of independent blob operations out
// across goroutines. The name-group resolver (internal/namegroup) uses it
// to classify every blob slot in a container against a codename in
// parallel: each slot's imprint check is independent of every other
// slot's, so there is no reason to pay for it one at a time on a
// multi-core machine.
package parallelcrypto

import (
	"runtime"
	"sync"

	"github.com/rtmigo/codn/internal/tlog"
)

const (
	// ParallelThreshold is the minimum number of items to trigger parallel
	// processing. Below it, goroutine spin-up overhead outweighs the gain.
	ParallelThreshold = 4
	// MaxParallelWorkers caps fan-out regardless of core count.
	MaxParallelWorkers = 16
	// MinParallelWorkers is the smallest core count that still parallelizes.
	MinParallelWorkers = 2
)

// ParallelCrypto decides whether and how wide to fan a batch of blob
// operations out, based on batch size and the host's core count.
type ParallelCrypto struct {
	enabled  bool
	cpuCount int
}

// New creates a new ParallelCrypto sized to the current GOMAXPROCS.
func New() *ParallelCrypto {
	return &ParallelCrypto{
		enabled:  true,
		cpuCount: runtime.GOMAXPROCS(0),
	}
}

// IsEnabled returns whether parallel processing is enabled.
func (pc *ParallelCrypto) IsEnabled() bool {
	return pc.enabled
}

// ShouldUseParallel decides whether batchSize items are worth fanning out.
func (pc *ParallelCrypto) ShouldUseParallel(batchSize int) bool {
	return pc.enabled && pc.cpuCount >= MinParallelWorkers && batchSize >= ParallelThreshold
}

// GetOptimalWorkerCount returns how many goroutines to use for batchSize items.
func (pc *ParallelCrypto) GetOptimalWorkerCount(batchSize int) int {
	if !pc.ShouldUseParallel(batchSize) {
		return 1
	}
	workers := pc.cpuCount
	if workers > MaxParallelWorkers {
		workers = MaxParallelWorkers
	}
	if workers > batchSize {
		workers = batchSize
	}
	return workers
}

// ProcessBatch calls processFunc once per contiguous [start, end) slice of
// [0, batchSize), splitting the range across goroutines when the batch is
// large enough to be worth it. It blocks until every slice has been
// processed.
func (pc *ParallelCrypto) ProcessBatch(batchSize int, processFunc func(start, end int)) {
	if !pc.ShouldUseParallel(batchSize) {
		processFunc(0, batchSize)
		return
	}

	workers := pc.GetOptimalWorkerCount(batchSize)
	groupSize := batchSize / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			start := workerID * groupSize
			end := start + groupSize
			if workerID == workers-1 {
				end = batchSize
			}
			processFunc(start, end)
		}(i)
	}
	wg.Wait()
}

// Disable turns off parallel processing; ProcessBatch then always runs
// sequentially. Tests use this to get deterministic ordering.
func (pc *ParallelCrypto) Disable() {
	pc.enabled = false
}

// Enable turns parallel processing back on.
func (pc *ParallelCrypto) Enable() {
	pc.enabled = true
}

// LogInfo logs the fan-out parameters this instance would use.
func (pc *ParallelCrypto) LogInfo() {
	tlog.Debug.Printf("parallelcrypto: enabled=%v cpu_count=%d threshold=%d max_workers=%d",
		pc.enabled, pc.cpuCount, ParallelThreshold, MaxParallelWorkers)
}
