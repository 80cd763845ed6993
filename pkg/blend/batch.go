package blend

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// batchChunk is the number of queries handled per pool task.
const batchChunk = 256

// Batcher resolves query slices on a fixed worker pool. Create one per
// long-lived consumer and Close it when done.
type Batcher struct {
	surface *Surface
	pool    worker.DynamicWorkerPool
	workers int

	closeOnce sync.Once
}

// NewBatcher starts a pool of workers for s. workers <= 0 uses the count set
// with WithWorkers.
func NewBatcher(s *Surface, workers int) *Batcher {
	if workers <= 0 {
		workers = s.opts.workers
	}
	if workers <= 0 {
		workers = 1
	}
	return &Batcher{
		surface: s,
		pool:    worker.NewDynamicWorkerPool(workers, workers*4, time.Second),
		workers: workers,
	}
}

// Workers returns the pool size.
func (b *Batcher) Workers() int {
	return b.workers
}

// Resolve resolves every query, writing results in query order. Chunks not yet
// started when ctx is cancelled are skipped and ctx.Err() is returned; results
// for skipped queries are left zero.
func (b *Batcher) Resolve(ctx context.Context, queries []Query) ([]Result, error) {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results, ctx.Err()
	}

	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(queries); start += batchChunk {
		if ctx.Err() != nil {
			break
		}
		end := min(start+batchChunk, len(queries))

		wg.Add(1)
		lo, hi := start, end
		b.pool.SubmitTask(worker.Task{
			ID: taskID,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				sc := NewScratch()
				for i := lo; i < hi; i++ {
					results[i] = b.surface.ResolveWith(queries[i], sc)
				}
				return nil, nil
			},
		})
		taskID++
	}
	wg.Wait()

	return results, ctx.Err()
}

// Close ends every worker goroutine and waits for them to take the exit task.
// No Resolve may be in flight; the Batcher must not be used afterwards.
//
// The pool's own Stop only ends the worker that happens to read its id from
// the shared stop channel, so each worker is instead handed a task that exits
// its goroutine. A worker that runs one never reads the queue again, which
// makes one task per worker retire all of them.
func (b *Batcher) Close() {
	b.closeOnce.Do(func() {
		var wg sync.WaitGroup
		wg.Add(b.workers)
		for i := 0; i < b.workers; i++ {
			b.pool.SubmitTask(worker.Task{
				ID: -1 - i,
				Do: func() (any, error) {
					defer runtime.Goexit()
					wg.Done()
					return nil, nil
				},
			})
		}
		wg.Wait()
	})
}

// ResolveBatch resolves queries on the surface's shared pool, sized by
// WithWorkers and started on first use. Small batches, and any batch after
// Close, run on the calling goroutine.
func (s *Surface) ResolveBatch(ctx context.Context, queries []Query) ([]Result, error) {
	if s.opts.workers <= 1 || len(queries) <= batchChunk {
		return s.resolveSequential(ctx, queries)
	}

	s.batchMu.RLock()
	defer s.batchMu.RUnlock()
	if s.closed {
		return s.resolveSequential(ctx, queries)
	}
	s.batchOnce.Do(func() {
		s.batcher = NewBatcher(s, s.opts.workers)
	})
	return s.batcher.Resolve(ctx, queries)
}

func (s *Surface) resolveSequential(ctx context.Context, queries []Query) ([]Result, error) {
	results := make([]Result, len(queries))
	sc := NewScratch()
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results[i] = s.ResolveWith(q, sc)
	}
	return results, nil
}

// Close releases the batch worker pool, waiting for in-flight ResolveBatch
// calls first. Resolve keeps working; later batches run sequentially.
func (s *Surface) Close() {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.batcher != nil {
		s.batcher.Close()
	}
}
