// Package metrics exposes Prometheus collectors for weight loading.
//
// Collectors live on a dedicated registry rather than the process default so
// a CLI run can export exactly what it did with WriteTextfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	BundleLoadsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clipweights_bundle_loads_total",
		Help: "Weight bundle load attempts by container format, encoder and result",
	}, []string{"format", "encoder", "result"})

	TensorsLoadedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clipweights_tensors_loaded_total",
		Help: "Total number of tensors materialized",
	}, []string{"format"})

	BytesLoadedTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clipweights_bytes_loaded_total",
		Help: "Total tensor bytes materialized",
	}, []string{"format"})

	BundleLoadDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipweights_bundle_load_duration_seconds",
		Help:    "Time to decode one weight bundle",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"format"})

	LoadErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "clipweights_load_errors_total",
		Help: "Failed bundle loads by container format and error kind",
	}, []string{"format", "kind"})
)

// RecordBundleLoad records a successful bundle decode.
func RecordBundleLoad(format, encoder string, tensors int, bytes int64, d time.Duration) {
	BundleLoadsTotal.WithLabelValues(format, encoder, "ok").Inc()
	TensorsLoadedTotal.WithLabelValues(format).Add(float64(tensors))
	BytesLoadedTotal.WithLabelValues(format).Add(float64(bytes))
	BundleLoadDuration.WithLabelValues(format).Observe(d.Seconds())
}

// RecordLoadError records a failed bundle load. kind is "not_found",
// "decode" or "io".
func RecordLoadError(format, encoder, kind string) {
	BundleLoadsTotal.WithLabelValues(format, encoder, "error").Inc()
	LoadErrorsTotal.WithLabelValues(format, kind).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
