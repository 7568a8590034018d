// Package metrics holds the prometheus instruments of the payment service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paymill"

type Metrics struct {
	gatewayCalls *prometheus.HistogramVec
	checkouts    *prometheus.CounterVec
	captures     *prometheus.CounterVec
	guardRefused prometheus.Counter
}

// New registers the instruments on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		gatewayCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Latency of remote gateway calls by resource kind, operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "operation", "outcome"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "processed_total",
			Help:      "Processed checkouts by mode and outcome code.",
		}, []string{"mode", "outcome"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "processed_total",
			Help:      "Deferred captures by outcome code.",
		}, []string{"outcome"}),
		guardRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duplicate_attempts_total",
			Help:      "Checkouts refused because the payment token was already in use.",
		}),
	}

	reg.MustRegister(m.gatewayCalls, m.checkouts, m.captures, m.guardRefused)
	return m
}

func (m *Metrics) ObserveGatewayCall(kind, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayCalls.WithLabelValues(kind, operation, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) CheckoutProcessed(mode, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) CaptureProcessed(outcome string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DuplicateAttempt() {
	if m == nil {
		return
	}
	m.guardRefused.Inc()
}
