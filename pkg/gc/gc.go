// Package gc implements coldvault's garbage collector (spec.md §4.8): a
// probabilistic bloom-filter sweep over the Object table, chosen over exact
// mark-and-sweep because its first pass is read-only and its memory
// footprint is bounded regardless of repository size. Grounded on
// backathon's GarbageCollector (build_filter/_iter_garbage/delete_garbage).
package gc

import (
	"context"
	"log/slog"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/internal/telemetry/metrics"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/codec"
	"github.com/coldvault/coldvault/pkg/store"
)

// Collector runs garbage collection sweeps against a cache/store pair.
type Collector struct {
	cache   *cache.Cache
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger overrides the collector's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Collector) { g.logger = logger }
}

// WithMetrics wires Prometheus collectors into the collector, exposed over
// the optional status API server when enabled.
func WithMetrics(m *metrics.Collectors) Option {
	return func(g *Collector) { g.metrics = m }
}

// New returns a Collector bound to c and s.
func New(c *cache.Cache, s store.Store, opts ...Option) *Collector {
	g := &Collector{cache: c, store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats summarizes one completed sweep.
type Stats struct {
	ObjectsRemoved int
	BytesRemoved   int64
}

// ProgressFunc reports deletion progress as each garbage object is removed.
type ProgressFunc func(removed int, bytes int64)

// Run performs one garbage collection sweep: build a reachability filter
// from the current snapshot set, then delete every Object row that is
// provably unreachable (any of its bit positions is clear), deleting the
// remote blob first. Both passes run inside one BEGIN IMMEDIATE transaction
// so no concurrent push_object can introduce a new reachable object the
// filter never saw (spec.md §4.8's locking requirement). Errors deleting a
// remote blob are logged and do not abort the sweep or the transaction —
// an orphaned blob with no local row is harmless and will be swept again
// the next time its name is produced by GC, whereas rolling back the
// transaction would re-expose a local row for an already-deleted blob.
func (g *Collector) Run(ctx context.Context, progress ProgressFunc) (Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanGCSweep)
	defer span.End()

	var stats Stats

	err := g.cache.WithImmediateTx(ctx, func(tx *cache.ImmediateTx) error {
		n, err := txCountObjects(ctx, tx)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		filter, err := newBloomFilter(n)
		if err != nil {
			return err
		}

		if err := txReachableObjectIDs(ctx, tx, func(objID []byte) error {
			filter.add(objID)
			return nil
		}); err != nil {
			return err
		}

		var garbage []objectRow
		if err := txAllObjects(ctx, tx, func(row objectRow) error {
			if !filter.maybeReachable(row.ObjID) {
				garbage = append(garbage, row)
			}
			return nil
		}); err != nil {
			return err
		}

		for _, row := range garbage {
			key := codec.ObjectKey(row.ObjID)
			if err := g.store.Delete(ctx, key); err != nil {
				g.logger.Error("failed to delete garbage blob, local row left for next sweep", logger.StoreKey(key), logger.Err(err))
				continue
			}
			if err := txDeleteObject(ctx, tx, row.ObjID); err != nil {
				return err
			}

			stats.ObjectsRemoved++
			if row.UploadedSize != nil {
				stats.BytesRemoved += *row.UploadedSize
			}
			if g.metrics != nil {
				g.metrics.GCObjectsRemoved.Inc()
				if row.UploadedSize != nil {
					g.metrics.GCBytesReclaimed.Add(float64(*row.UploadedSize))
				}
			}
			if progress != nil {
				progress(stats.ObjectsRemoved, stats.BytesRemoved)
			}
		}

		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return stats, err
	}
	span.SetAttributes(telemetry.Candidates(stats.ObjectsRemoved), telemetry.FreedBytes(stats.BytesRemoved))
	return stats, nil
}
