// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline. The dashboard serves the collected metrics on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/fx"
)

// Recorder records ingestion pipeline metrics.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	categoryTotal *prometheus.CounterVec
	runDuration   prometheus.Histogram
	storeRows     *prometheus.GaugeVec
}

// NewRecorder registers the pipeline metrics on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fitledger_ingest_runs_total",
			Help: "Total ingestion runs by terminal status.",
		}, []string{"status"}),
		categoryTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fitledger_ingest_category_total",
			Help: "Per-category extract-and-merge outcomes.",
		}, []string{"category", "status"}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fitledger_ingest_run_duration_seconds",
			Help:    "Wall-clock duration of ingestion runs.",
			Buckets: prometheus.DefBuckets,
		}),
		storeRows: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fitledger_store_rows",
			Help: "Row count of each category store object after the last merge.",
		}, []string{"category"}),
	}
}

// RecordRun records a finished run with its status and duration.
func (r *Recorder) RecordRun(succeeded bool, duration time.Duration) {
	status := "succeeded"
	if !succeeded {
		status = "failed"
	}
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())
}

// RecordCategory records a per-category outcome and the resulting store size.
func (r *Recorder) RecordCategory(category string, err error, rows int) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	} else {
		r.storeRows.WithLabelValues(category).Set(float64(rows))
	}
	r.categoryTotal.WithLabelValues(category, status).Inc()
}

// Module provides the metrics recorder.
var Module = fx.Options(
	fx.Provide(NewRecorder),
)
