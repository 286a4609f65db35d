package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ypapub/internal/pub"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Publisher metrics
	publishTotal     *prometheus.CounterVec
	publishDuration  *prometheus.HistogramVec
	publishBatchSize *prometheus.HistogramVec
	publishFailures  *prometheus.CounterVec
	closeTotal       *prometheus.CounterVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_publisher_publish_total",
				Help: "Total number of publish operations",
			},
			[]string{"topic", "status"}, // status: success, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pub_publisher_publish_duration_seconds",
				Help:    "Time spent publishing batches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),

		publishBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pub_publisher_batch_size",
				Help:    "Number of messages in successfully published batches",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"topic"},
		),

		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_publisher_publish_failures_total",
				Help: "Total number of failed publish operations by failure kind",
			},
			[]string{"topic", "kind"}, // kind: network, status, response, encoding
		),

		closeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pub_publisher_close_total",
				Help: "Total number of publisher close operations",
			},
			[]string{"topic", "status"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pub_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pub_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.publishBatchSize,
		r.publishFailures,
		r.closeTotal,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for collection outside the HTTP handler
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordPublish records a publisher publish operation
func (r *Registry) RecordPublish(topic string, batchSize int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		r.publishFailures.WithLabelValues(topic, failureLabel(err)).Inc()
	}

	r.publishTotal.WithLabelValues(topic, status).Inc()
	r.publishDuration.WithLabelValues(topic).Observe(duration.Seconds())
	if err == nil {
		r.publishBatchSize.WithLabelValues(topic).Observe(float64(batchSize))
	}
}

// RecordClose records a publisher close operation
func (r *Registry) RecordClose(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.closeTotal.WithLabelValues(topic, status).Inc()
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}

// errors without a PublishError were raised before anything was sent
func failureLabel(err error) string {
	if kind := pub.FailureKindOf(err); kind != 0 {
		return kind.String()
	}
	return "encoding"
}
