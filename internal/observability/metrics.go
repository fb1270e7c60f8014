// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Reconciliation metrics
	ListingsMatched     *prometheus.CounterVec
	ListingsCreated     *prometheus.CounterVec
	ListingsReactivated *prometheus.CounterVec
	ListingsRemoved     *prometheus.CounterVec
	RecordsFiltered     *prometheus.CounterVec
	PagesFailed         *prometheus.CounterVec
	ReconcileDuration   *prometheus.HistogramVec

	// Benchmark metrics
	BenchmarksStored   prometheus.Counter
	BenchmarksFiltered prometheus.Counter
	BenchmarksSkipped  prometheus.Counter
	BenchmarkErrors    prometheus.Counter
	RateLimitHits      *prometheus.CounterVec
	BenchmarkDuration  prometheus.Histogram

	// Scoring metrics
	OpportunitiesFound   prometheus.Counter
	OpportunitiesRetired *prometheus.CounterVec
	ListingsScored       prometheus.Counter
	ScoreDuration        prometheus.Histogram

	// Cycle metrics
	CycleRunsTotal *prometheus.CounterVec
	CycleDuration  prometheus.Histogram

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
	ActiveOpportunities prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cardarb"
	}

	return &Metrics{
		// Reconciliation metrics
		ListingsMatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "listings_matched_total",
			Help:      "Total listings matched per reconciliation pass",
		}, []string{"storefront"}),
		ListingsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "listings_created_total",
			Help:      "Total new listing rows created",
		}, []string{"storefront"}),
		ListingsReactivated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "listings_reactivated_total",
			Help:      "Total listings reactivated after being inactive",
		}, []string{"storefront"}),
		ListingsRemoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "listings_removed_total",
			Help:      "Total listings left inactive after a pass",
		}, []string{"storefront"}),
		RecordsFiltered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records_filtered_total",
			Help:      "Total feed records rejected by scope filters",
		}, []string{"storefront"}),
		PagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pages_failed_total",
			Help:      "Total feed pages abandoned after retry exhaustion",
		}, []string{"storefront"}),
		ReconcileDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"storefront"}),

		// Benchmark metrics
		BenchmarksStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "stored_total",
			Help:      "Total benchmark rows stored",
		}),
		BenchmarksFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "filtered_total",
			Help:      "Total computed medians discarded by the price band",
		}),
		BenchmarksSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "skipped_total",
			Help:      "Total candidates skipped because a fresh benchmark exists",
		}),
		BenchmarkErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "errors_total",
			Help:      "Total per-candidate benchmark computation errors",
		}),
		RateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "rate_limit_hits_total",
			Help:      "Total rate-limit responses from external sources",
		}, []string{"source"}),
		BenchmarkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "run_duration_seconds",
			Help:      "Benchmark engine run duration",
			Buckets:   prometheus.DefBuckets,
		}),

		// Scoring metrics
		OpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "opportunities_found_total",
			Help:      "Total opportunities inserted or refreshed",
		}),
		OpportunitiesRetired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "opportunities_retired_total",
			Help:      "Total opportunities deactivated by reason",
		}, []string{"reason"}),
		ListingsScored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "listings_checked_total",
			Help:      "Total active listings considered for scoring",
		}),
		ScoreDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "score",
			Name:      "pass_duration_seconds",
			Help:      "Scoring pass duration",
			Buckets:   prometheus.DefBuckets,
		}),

		// Cycle metrics
		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_runs_total",
			Help:      "Total pipeline cycles by status",
		}, []string{"status"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycle_duration_seconds",
			Help:      "Full cycle duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),

		// Health metrics
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful pipeline cycle",
		}),
		ActiveOpportunities: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "active_opportunities",
			Help:      "Number of currently active opportunities",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordReconcilePass records the counters for one reconciliation pass.
func RecordReconcilePass(storefront string, matched, created, reactivated, removed, filtered, pagesFailed int, seconds float64) {
	m := DefaultMetrics
	m.ListingsMatched.WithLabelValues(storefront).Add(float64(matched))
	m.ListingsCreated.WithLabelValues(storefront).Add(float64(created))
	m.ListingsReactivated.WithLabelValues(storefront).Add(float64(reactivated))
	m.ListingsRemoved.WithLabelValues(storefront).Add(float64(removed))
	m.RecordsFiltered.WithLabelValues(storefront).Add(float64(filtered))
	m.PagesFailed.WithLabelValues(storefront).Add(float64(pagesFailed))
	m.ReconcileDuration.WithLabelValues(storefront).Observe(seconds)
}

// RecordBenchmarkRun records the counters for one benchmark engine run.
func RecordBenchmarkRun(stored, filtered, skipped, errors int, rateLimited bool, seconds float64) {
	m := DefaultMetrics
	m.BenchmarksStored.Add(float64(stored))
	m.BenchmarksFiltered.Add(float64(filtered))
	m.BenchmarksSkipped.Add(float64(skipped))
	m.BenchmarkErrors.Add(float64(errors))
	if rateLimited {
		m.RateLimitHits.WithLabelValues("marketdata").Inc()
	}
	m.BenchmarkDuration.Observe(seconds)
}

// RecordScorePass records the counters for one scoring pass.
func RecordScorePass(checked, found, stale, cascade int, seconds float64) {
	m := DefaultMetrics
	m.ListingsScored.Add(float64(checked))
	m.OpportunitiesFound.Add(float64(found))
	m.OpportunitiesRetired.WithLabelValues("stale").Add(float64(stale))
	m.OpportunitiesRetired.WithLabelValues("listing_inactive").Add(float64(cascade))
	m.ScoreDuration.Observe(seconds)
}

// RecordCycle records a pipeline cycle outcome.
func RecordCycle(status string, seconds float64) {
	m := DefaultMetrics
	m.CycleRunsTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(seconds)
	if status == "success" {
		m.LastSuccessfulCycle.SetToCurrentTime()
	}
}

// UpdateActiveOpportunities updates the active opportunity gauge.
func UpdateActiveOpportunities(count int) {
	DefaultMetrics.ActiveOpportunities.Set(float64(count))
}
