package backup

import (
	"context"
	"fmt"
	"sync"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/repository"
)

// workerContext bundles the cache/repository pair one executor lane
// operates against. inlineExecutor shares the dispatcher's own pair (there's
// only one goroutine, so nothing races); poolExecutor hands each lane its
// own pair opened over an independent SQLite connection, per spec.md §5/§9:
// the cache database connection must not cross the worker boundary.
type workerContext struct {
	cache *cache.Cache
	repo  *repository.Repository
}

// batchFunc backs up one batch of entries against wc, returning how many
// were processed (used for progress reporting) or the first error
// encountered.
type batchFunc func(wc *workerContext, batch []int64) (int, error)

// executor runs batches of the backup pipeline, carrying forward
// backathon's DummyExecutor/ProcessPoolExecutor symmetry: inlineExecutor
// processes batches one at a time in the calling goroutine (used for
// --single/debugging), poolExecutor fans them out across a fixed set of
// worker lanes. Both honor the per-loop completion barrier: RunAll never
// returns before every batch it was given has finished, so a later pass's
// "ready" query never races with still-running backups from this one.
type executor interface {
	RunAll(batches [][]int64, fn batchFunc) (int, error)
}

// inlineExecutor runs every batch on the calling goroutine against a single
// shared workerContext.
type inlineExecutor struct {
	wc *workerContext
}

func (e inlineExecutor) RunAll(batches [][]int64, fn batchFunc) (int, error) {
	var total int
	for _, batch := range batches {
		n, err := fn(e.wc, batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// openWorkerFunc opens one lane's independent cache/repository pair and
// returns a func to release it.
type openWorkerFunc func() (*workerContext, func() error, error)

// poolExecutor runs batches across a fixed number of worker lanes, each
// backed by its own cache connection opened once for the lane's lifetime
// (not once per batch — that would thrash SQLite's single-writer lock for
// no benefit) via open.
type poolExecutor struct {
	workers int
	open    openWorkerFunc
}

func newPoolExecutor(workers int, open openWorkerFunc) *poolExecutor {
	if workers < 1 {
		workers = 1
	}
	return &poolExecutor{workers: workers, open: open}
}

type batchResult struct {
	n   int
	err error
}

func (p *poolExecutor) RunAll(batches [][]int64, fn batchFunc) (int, error) {
	jobs := make(chan []int64)
	results := make(chan batchResult, len(batches)+p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			wc, release, err := p.open()
			if err != nil {
				results <- batchResult{err: fmt.Errorf("backup: open worker cache connection: %w", err)}
				return
			}
			defer release()

			laneCtx := logger.WithContext(context.Background(), logger.NewLogContext("backup").WithWorkerID(i))

			for batch := range jobs {
				spanCtx, span := telemetry.StartWorkerSpan(laneCtx, i, len(batch))
				n, err := fn(wc, batch)
				if err != nil {
					telemetry.RecordError(spanCtx, err)
					logger.ErrorCtx(laneCtx, "worker lane batch failed", logger.BatchSize(len(batch)), logger.Err(err))
				}
				span.End()
				results <- batchResult{n: n, err: err}
			}
		}()
	}

	go func() {
		for _, batch := range batches {
			jobs <- batch
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var total int
	var firstErr error
	for r := range results {
		total += r.n
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}
	return total, firstErr
}
