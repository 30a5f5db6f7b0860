// Package metrics provides Prometheus metrics for the synchronization pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics contains Prometheus metrics for reach synchronization
type SyncMetrics struct {
	registry *prometheus.Registry

	// Source fetch metrics
	sourceFetchesTotal  *prometheus.CounterVec
	sourceFetchDuration *prometheus.HistogramVec

	// Target layer update metrics
	layerUpdatesTotal   *prometheus.CounterVec
	layerUpdateDuration *prometheus.HistogramVec

	// Batch job metrics
	jobOutcomesTotal *prometheus.CounterVec
	jobDuration      prometheus.Histogram
	batchDuration    prometheus.Histogram
	batchSizeGauge   prometheus.Gauge
}

// NewSyncMetrics creates and registers new synchronization metrics
func NewSyncMetrics(registry *prometheus.Registry) (*SyncMetrics, error) {
	m := &SyncMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *SyncMetrics) initMetrics() error {
	m.sourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reachsync_source_fetches_total",
			Help: "Total number of reach source fetch operations",
		},
		[]string{"status"}, // status: success, not_found, error
	)

	m.sourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "reachsync_source_fetch_duration_seconds",
			Help: "Time taken to fetch one reach from the source",
			// 100ms to ~50s covers the source site on a good day and a bad one
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"status"},
	)

	m.layerUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reachsync_layer_updates_total",
			Help: "Total number of attribute updates against target layers",
		},
		[]string{"layer", "status"}, // status: success, partial_failure, failure, not_found, duplicate_key
	)

	m.layerUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reachsync_layer_update_duration_seconds",
			Help:    "Time taken to locate and update one feature",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"layer"},
	)

	m.jobOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reachsync_job_outcomes_total",
			Help: "Total number of per-reach synchronization job outcomes",
		},
		[]string{"outcome"}, // outcome: succeeded, not_found, duplicate_key, fetch_failed, update_failed
	)

	m.jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reachsync_job_duration_seconds",
			Help:    "End to end duration of one synchronization job",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "reachsync_batch_duration_seconds",
			Help: "End to end duration of a batch run",
			// batches span thousands of reaches; buckets reach into hours
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	m.batchSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reachsync_batch_size",
			Help: "Number of unique keys in the current batch run",
		},
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sourceFetchesTotal.Describe(ch)
	m.sourceFetchDuration.Describe(ch)
	m.layerUpdatesTotal.Describe(ch)
	m.layerUpdateDuration.Describe(ch)
	m.jobOutcomesTotal.Describe(ch)
	m.jobDuration.Describe(ch)
	m.batchDuration.Describe(ch)
	m.batchSizeGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sourceFetchesTotal.Collect(ch)
	m.sourceFetchDuration.Collect(ch)
	m.layerUpdatesTotal.Collect(ch)
	m.layerUpdateDuration.Collect(ch)
	m.jobOutcomesTotal.Collect(ch)
	m.jobDuration.Collect(ch)
	m.batchDuration.Collect(ch)
	m.batchSizeGauge.Collect(ch)
}

// RecordSourceFetch records a source fetch operation and its duration
func (m *SyncMetrics) RecordSourceFetch(status string, duration float64) {
	m.sourceFetchesTotal.WithLabelValues(status).Inc()
	m.sourceFetchDuration.WithLabelValues(status).Observe(duration)
}

// RecordLayerUpdate records an attribute update against a target layer
func (m *SyncMetrics) RecordLayerUpdate(layer, status string, duration float64) {
	m.layerUpdatesTotal.WithLabelValues(layer, status).Inc()
	m.layerUpdateDuration.WithLabelValues(layer).Observe(duration)
}

// RecordJobOutcome records the outcome of one synchronization job
func (m *SyncMetrics) RecordJobOutcome(outcome string, duration float64) {
	m.jobOutcomesTotal.WithLabelValues(outcome).Inc()
	m.jobDuration.Observe(duration)
}

// RecordBatch records the size and duration of a completed batch run
func (m *SyncMetrics) RecordBatch(size int, duration float64) {
	m.batchSizeGauge.Set(float64(size))
	m.batchDuration.Observe(duration)
}
