package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	viewQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfgdash_view_queries_total",
			Help: "Total number of warehouse queries run for dashboard views.",
		},
		[]string{"view", "outcome"},
	)
	viewQueryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mfgdash_view_query_duration_seconds",
			Help:    "Warehouse round trip per view query, connect to close.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"view"},
	)
	viewRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mfgdash_view_rows",
			Help:    "Rows materialized per view query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"view"},
	)
	insightRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfgdash_insight_requests_total",
			Help: "Total number of insight requests sent to the model endpoint.",
		},
		[]string{"view", "outcome"},
	)
	insightDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mfgdash_insight_duration_seconds",
			Help:    "Model endpoint latency per insight request.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"view"},
	)
)

func init() {
	prometheus.MustRegister(
		viewQueriesTotal,
		viewQueryDurationSeconds,
		viewRows,
		insightRequestsTotal,
		insightDurationSeconds,
	)
}

func ObserveViewQuery(view, outcome string, rows int, elapsed time.Duration) {
	viewQueriesTotal.WithLabelValues(view, outcome).Inc()
	viewQueryDurationSeconds.WithLabelValues(view).Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		viewRows.WithLabelValues(view).Observe(float64(rows))
	}
}

func ObserveInsight(view, outcome string, elapsed time.Duration) {
	insightRequestsTotal.WithLabelValues(view, outcome).Inc()
	insightDurationSeconds.WithLabelValues(view).Observe(elapsed.Seconds())
}
