package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool runs independent jobs on a fixed number of goroutines
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a new worker pool
// workerCount: number of worker goroutines (0 = use NumCPU)
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// ExecuteParallel calls operation for every index in [0, n).
//
// Returns the error of the lowest failing index. After the first failure
// the context passed to pending operations is cancelled and jobs not yet
// started are skipped.
func (p *WorkerPool) ExecuteParallel(
	ctx context.Context,
	n int,
	operation func(ctx context.Context, i int) error,
) error {
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	jobs := make(chan int, n)

	workers := p.workerCount
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					errs[idx] = err
					continue
				}
				if err := operation(ctx, idx); err != nil {
					errs[idx] = err
					cancel()
				}
			}
		}()
	}

	// Enqueue all jobs
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	// Wait for completion
	wg.Wait()

	// Prefer a real failure over the cancellations it caused
	var first error
	firstIdx := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstIdx < 0 || (errors.Is(first, context.Canceled) && !errors.Is(err, context.Canceled)) {
			first, firstIdx = err, i
		}
	}
	if first != nil {
		return fmt.Errorf("parallel execution failed at index %d: %w", firstIdx, first)
	}
	return nil
}
