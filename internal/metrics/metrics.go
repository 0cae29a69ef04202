// Package metrics wraps Prometheus collectors for the queue engine. It is
// ambient observability: carried regardless of the spec's Non-goals, which
// exclude flow control and backpressure, not instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the counters and histogram the engine and sweeper report to.
type Metrics struct {
	registry *prometheus.Registry

	messagesAdded        *prometheus.CounterVec
	messagesDelivered    *prometheus.CounterVec
	messagesAcknowledged *prometheus.CounterVec
	messagesExpired      *prometheus.CounterVec

	sweepsTotal      prometheus.Counter
	sweepErrorsTotal prometheus.Counter
	sweepDuration    prometheus.Histogram
}

// New registers and returns a fresh Metrics under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		messagesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_added_total",
			Help:      "Total number of messages added to a queue.",
		}, []string{"queue"}),

		messagesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages returned by next().",
		}, []string{"queue"}),

		messagesAcknowledged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_acknowledged_total",
			Help:      "Total number of acknowledge() calls.",
		}, []string{"queue"}),

		messagesExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_expired_total",
			Help:      "Total number of messages purged by the sweeper.",
		}, []string{"queue"}),

		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Total number of sweeper ticks that ran to completion.",
		}),

		sweepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Total number of sweeper ticks that returned an error.",
		}),

		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of each remove_expired sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.messagesAdded,
		m.messagesDelivered,
		m.messagesAcknowledged,
		m.messagesExpired,
		m.sweepsTotal,
		m.sweepErrorsTotal,
		m.sweepDuration,
	)

	return m
}

// MessageAdded records a successful Add on the named queue.
func (m *Metrics) MessageAdded(queueName string) {
	m.messagesAdded.WithLabelValues(queueName).Inc()
}

// MessageDelivered records a successful Next on the named queue.
func (m *Metrics) MessageDelivered(queueName string) {
	m.messagesDelivered.WithLabelValues(queueName).Inc()
}

// MessageAcknowledged records an Acknowledge call on the named queue.
func (m *Metrics) MessageAcknowledged(queueName string) {
	m.messagesAcknowledged.WithLabelValues(queueName).Inc()
}

// MessagesExpired records count messages purged from the named queue.
func (m *Metrics) MessagesExpired(queueName string, count int) {
	m.messagesExpired.WithLabelValues(queueName).Add(float64(count))
}

// SweepObserved records the outcome and duration of one sweeper tick.
func (m *Metrics) SweepObserved(seconds float64, err error) {
	m.sweepsTotal.Inc()
	m.sweepDuration.Observe(seconds)
	if err != nil {
		m.sweepErrorsTotal.Inc()
	}
}

// Handler exposes the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
