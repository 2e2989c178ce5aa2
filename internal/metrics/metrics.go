package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_paste_created_total",
		Help: "no. of pastes created",
	})
	IDConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_id_conflicts_total",
		Help: "no. of identifier collisions retried at create time",
	})
	IDExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_id_exhausted_total",
		Help: "no. of creates that ran out of identifier attempts",
	})
	PasteReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snipbin_paste_reads_total",
			Help: "no. of paste lookups by outcome",
		},
		[]string{"outcome"},
	)
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_cache_misses_total",
		Help: "no. of cache misses",
	})
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_sweep_runs_total",
		Help: "no. of expiry sweeps",
	})
	SweepDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_sweep_deleted_total",
		Help: "no. of expired pastes reclaimed",
	})
	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snipbin_sweep_failures_total",
		Help: "no. of failed list or delete calls during sweeps",
	})
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snipbin_sweep_duration_seconds",
		Help:    "expiry sweep duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snipbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Read outcomes for PasteReads.
const (
	ReadHit      = "hit"
	ReadNotFound = "not_found"
	ReadError    = "error"
)
