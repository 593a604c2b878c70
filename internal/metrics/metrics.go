// Package metrics exposes Prometheus instrumentation for indexing and
// querying, trimmed from the teacher's much larger Metrics struct
// (internal/metrics/metrics.go) down to the handful of series this engine
// actually emits.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters and histograms the matcher and indexing
// paths update.
type Metrics struct {
	RecordsIndexed      prometheus.Counter
	QuadsIndexed        prometheus.Counter
	QueriesTotal        prometheus.Counter
	CandidatesGathered  prometheus.Histogram
	MatchesEmitted      prometheus.Histogram
	QueryDuration       prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize builds the singleton Metrics instance, registering every
// series with the default Prometheus registry exactly once (mirroring the
// teacher's sync.Once-guarded Initialize()).
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			RecordsIndexed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "qfp_records_indexed_total",
				Help: "Total number of records successfully ingested into the catalog.",
			}),
			QuadsIndexed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "qfp_quads_indexed_total",
				Help: "Total number of quads written to the spatial index.",
			}),
			QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "qfp_queries_total",
				Help: "Total number of match queries served.",
			}),
			CandidatesGathered: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "qfp_candidates_gathered",
				Help:    "Number of Stage 1 candidates gathered per query.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}),
			MatchesEmitted: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "qfp_matches_emitted",
				Help:    "Number of matches emitted per query.",
				Buckets: prometheus.LinearBuckets(0, 1, 10),
			}),
			QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "qfp_query_duration_seconds",
				Help:    "Wall-clock duration of a single Matcher.Query call.",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return instance
}
