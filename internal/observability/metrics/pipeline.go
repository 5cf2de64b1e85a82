// Package metrics provides the Prometheus collectors of the ingestion pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains the Prometheus metrics of the ingestion pipeline.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	ImagesProcessed prometheus.Counter
	BatchesTotal    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
}

// NewPipelineMetrics creates the pipeline metrics and registers them with registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		ImagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_images_processed_total",
			Help: "Total number of images analyzed and stored.",
		}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_batches_total",
			Help: "Total number of notification batches handled, by result.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.ImagesProcessed, m.BatchesTotal, m.StageDuration} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveStage records how long a stage took.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncImages counts one stored record.
func (m *PipelineMetrics) IncImages() {
	if m == nil {
		return
	}
	m.ImagesProcessed.Inc()
}

// IncBatch counts one handled batch; result is "success" or "failure".
func (m *PipelineMetrics) IncBatch(result string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(result).Inc()
}
