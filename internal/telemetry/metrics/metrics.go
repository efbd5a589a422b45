// Package metrics defines the Prometheus collectors coldvault exposes over
// the optional status HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors holds every coldvault-wide Prometheus metric. All names use
// the coldvault_ prefix.
type Collectors struct {
	ObjectsPushed     *prometheus.CounterVec
	BytesUploaded     prometheus.Counter
	BytesDownloaded   prometheus.Counter
	BackupDuration    prometheus.Histogram
	GCObjectsRemoved  prometheus.Counter
	GCBytesReclaimed  prometheus.Counter
	ScanEntriesTotal  prometheus.Gauge
	ActiveWorkers     prometheus.Gauge
}

// New creates coldvault's metrics and registers them against reg.
// Panics if registration fails, which only happens during wiring mistakes
// (duplicate registration), so it is expected to run once at startup.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		ObjectsPushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coldvault_objects_pushed_total",
				Help: "Total objects pushed to the repository, by object kind.",
			},
			[]string{"kind"},
		),
		BytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldvault_bytes_uploaded_total",
			Help: "Total payload bytes uploaded to the storage backend.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldvault_bytes_downloaded_total",
			Help: "Total payload bytes downloaded from the storage backend.",
		}),
		BackupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coldvault_backup_duration_seconds",
			Help:    "Wall-clock duration of completed backup runs.",
			Buckets: prometheus.DefBuckets,
		}),
		GCObjectsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldvault_gc_objects_removed_total",
			Help: "Total objects removed by garbage collection sweeps.",
		}),
		GCBytesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coldvault_gc_bytes_reclaimed_total",
			Help: "Total bytes reclaimed by garbage collection sweeps.",
		}),
		ScanEntriesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coldvault_scan_entries_total",
			Help: "Number of filesystem entries discovered by the most recent scan.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coldvault_backup_active_workers",
			Help: "Number of backup pipeline worker goroutines currently busy.",
		}),
	}

	reg.MustRegister(
		c.ObjectsPushed,
		c.BytesUploaded,
		c.BytesDownloaded,
		c.BackupDuration,
		c.GCObjectsRemoved,
		c.GCBytesReclaimed,
		c.ScanEntriesTotal,
		c.ActiveWorkers,
	)

	return c
}
