// Package backup implements coldvault's backup pipeline (spec.md §4.6): it
// repeatedly selects the "ready" subset of dirty FSEntry rows — those whose
// children, if any, are already backed up — and pushes each one to the
// repository facade, draining the dirty set in dependency order.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/internal/telemetry/metrics"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/coldvaulterr"
	"github.com/coldvault/coldvault/pkg/repository"
)

// BatchSize mirrors backathon's BATCH_SIZE: how many ready entries are
// handed to one executor task.
const BatchSize = 100

// Pipeline drives backup runs against a cache/repository pair.
type Pipeline struct {
	cache  *cache.Cache
	repo   *repository.Repository
	logger *slog.Logger

	checkpointInterval time.Duration
	workers            int
	metrics            *metrics.Collectors
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the pipeline's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithCheckpointInterval overrides how often a long-running backup pass
// force-checkpoints the WAL. Zero disables periodic checkpointing.
func WithCheckpointInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.checkpointInterval = d }
}

// WithWorkers sets the number of worker lanes backing up independent
// batches concurrently, each opening its own cache connection. 1 (the
// default) runs everything inline on the calling goroutine, sharing the
// dispatcher's connection, matching backathon's --single/DummyExecutor
// mode.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n < 1 {
			n = 1
		}
		p.workers = n
	}
}

// WithMetrics wires Prometheus collectors into the pipeline, exposed over
// the optional status API server when enabled. A nil *Pipeline.metrics is
// valid and simply skips recording.
func WithMetrics(m *metrics.Collectors) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New returns a Pipeline bound to c and repo.
func New(c *cache.Cache, repo *repository.Repository, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:              c,
		repo:               repo,
		logger:             slog.Default(),
		checkpointInterval: 30 * time.Second,
		workers:            1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ErrNeedsScan is returned by Run when unscanned (new) entries remain: spec.md
// §4.6 requires a scan to have fully settled the cache before a backup runs.
var ErrNeedsScan = coldvaulterr.New(coldvaulterr.CodeContractViolation, "backup: unscanned entries remain, run a scan first")

// ProgressFunc reports backup progress against the total size of the
// to-backup set computed at the start of the run.
type ProgressFunc func(done, total int)

// Run drains the dirty FSEntry set in dependency order, pushing each ready
// entry's object(s) to the repository, then snapshots every root and
// refreshes the cache's query-planner statistics.
func (p *Pipeline) Run(ctx context.Context, progress ProgressFunc) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanBackupRun)
	span.SetAttributes(telemetry.Operation("backup"))
	defer span.End()

	lc := logger.NewLogContext("backup").WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)
	logger.InfoCtx(ctx, "backup run starting")
	defer func() { logger.InfoCtx(ctx, "backup run finished", logger.DurationMs(lc.DurationMs())) }()

	runStart := time.Now()
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Set(float64(p.workers))
		defer p.metrics.ActiveWorkers.Set(0)
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.BackupDuration.Observe(time.Since(runStart).Seconds())
		}
	}()

	hasNew, err := p.hasUnscannedEntries(ctx)
	if err != nil {
		return err
	}
	if hasNew {
		return ErrNeedsScan
	}

	total, err := p.cache.CountDirtyFSEntries(ctx)
	if err != nil {
		return err
	}
	done := 0
	lastCheckpoint := time.Now()

	exec := p.buildExecutor(ctx)

	for {
		ready, err := p.cache.ReadyFSEntries(ctx)
		if err != nil {
			return err
		}
		if len(ready) == 0 {
			remaining, err := p.cache.CountDirtyFSEntries(ctx)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return coldvaulterr.New(coldvaulterr.CodeContractViolation,
					"backup: dirty entries remain but none are ready — dependency cycle in fsentry tree")
			}
			break
		}

		ids := make([]int64, len(ready))
		for i, e := range ready {
			ids[i] = e.ID
		}

		batches := batchIDs(ids, BatchSize)
		n, err := exec.RunAll(batches, func(wc *workerContext, batch []int64) (int, error) {
			for _, id := range batch {
				if err := p.backupEntryWith(ctx, wc.cache, wc.repo, id); err != nil {
					return 0, err
				}
			}
			return len(batch), nil
		})
		done += n
		if p.metrics != nil {
			p.metrics.ObjectsPushed.WithLabelValues("entry").Add(float64(n))
		}
		if progress != nil {
			progress(done, int(total))
		}
		if err != nil {
			return err
		}

		if p.checkpointInterval > 0 && time.Since(lastCheckpoint) >= p.checkpointInterval {
			lastCheckpoint = time.Now()
			if err := p.cache.Checkpoint(ctx); err != nil {
				return err
			}
		}
	}

	if err := p.snapshotRoots(ctx); err != nil {
		return err
	}

	return p.cache.Analyze(ctx)
}

// buildExecutor picks the executor this run uses: inline for p.workers <= 1,
// sharing the dispatcher's own cache/repository pair, or a fixed pool of
// lanes that each open an independent cache connection on first use.
func (p *Pipeline) buildExecutor(ctx context.Context) executor {
	if p.workers <= 1 {
		return inlineExecutor{wc: &workerContext{cache: p.cache, repo: p.repo}}
	}
	return newPoolExecutor(p.workers, func() (*workerContext, func() error, error) {
		return p.openWorker(ctx)
	})
}

// openWorker opens an independent connection to the same cache database and
// binds a Repository to it, so a pool lane never touches the dispatcher's
// own *cache.Cache (spec.md §5/§9).
func (p *Pipeline) openWorker(ctx context.Context) (*workerContext, func() error, error) {
	wc, err := cache.Open(ctx, p.cache.Config())
	if err != nil {
		return nil, nil, err
	}
	return &workerContext{cache: wc, repo: p.repo.WithCache(wc)}, wc.Close, nil
}

func (p *Pipeline) hasUnscannedEntries(ctx context.Context) (bool, error) {
	entries, err := p.cache.NewFSEntries(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// snapshotRoots records one Snapshot per backup root, all sharing this
// run's timestamp so they group together as one logical backup.
func (p *Pipeline) snapshotRoots(ctx context.Context) error {
	roots, err := p.cache.Roots(ctx)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for _, root := range roots {
		if root.ObjID == nil {
			return coldvaulterr.New(coldvaulterr.CodeContractViolation,
				fmt.Sprintf("root %s has no object after backup completed", safePathForLog(root.Path)))
		}
		if _, err := p.repo.PutSnapshot(ctx, root.Path, root.ObjID, now, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

func batchIDs(ids []int64, size int) [][]int64 {
	var batches [][]int64
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		batches = append(batches, ids[:n])
		ids = ids[n:]
	}
	return batches
}
