// Package metrics exposes Prometheus metrics for the import queue.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all importer metrics.
	Namespace = "importer"
)

// Metrics holds the Prometheus metrics the queue and pipeline report into.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	AssetsUpserted prometheus.Counter
	TickInFlight   prometheus.Gauge
	RunDuration    prometheus.Histogram
}

// New creates and registers the importer metrics. A nil registerer falls back
// to the default one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Import runs finished, labeled by terminal status",
			},
			[]string{"status"},
		),
		AssetsUpserted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "assets_upserted_total",
				Help:      "Asset rows written through the upsert path",
			},
		),
		TickInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "queue_tick_in_flight",
				Help:      "Whether a claimed run is currently executing (0 or 1)",
			},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of one run execution end to end",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
}
