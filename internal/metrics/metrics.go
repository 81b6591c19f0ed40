// Package metrics records delivery outcomes in a Prometheus registry that can
// be written out as a node_exporter textfile. The notifier runs once per
// process, so there is no scrape endpoint.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery results used as the "result" label.
const (
	ResultSuccess        = "success"
	ResultNotConfirmed   = "not_confirmed"
	ResultTransportError = "transport_error"
	ResultError          = "error"
)

// Recorder holds the notifier's metrics in its own registry.
type Recorder struct {
	registry *prometheus.Registry

	deliveries   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	messageBytes prometheus.Histogram
	lastSuccess  *prometheus.GaugeVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_notifier_deliveries_total",
			Help: "Total number of delivery attempts by transport and result",
		}, []string{"transport", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mail_notifier_delivery_duration_seconds",
			Help:    "Time spent delivering one message",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		messageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_notifier_message_size_bytes",
			Help:    "Encoded size of composed messages",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mail_notifier_last_success_timestamp_seconds",
			Help: "Unix time of the last confirmed delivery",
		}, []string{"transport"}),
	}

	r.registry.MustRegister(r.deliveries, r.duration, r.messageBytes, r.lastSuccess)
	return r
}

// ObserveDelivery records one delivery attempt.
func (r *Recorder) ObserveDelivery(transport, result string, size int, elapsed time.Duration) {
	r.deliveries.WithLabelValues(transport, result).Inc()
	r.duration.WithLabelValues(transport).Observe(elapsed.Seconds())
	r.messageBytes.Observe(float64(size))
	if result == ResultSuccess {
		r.lastSuccess.WithLabelValues(transport).SetToCurrentTime()
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteFile writes all metrics to path in the text exposition format. The
// file is replaced atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
