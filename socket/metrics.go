package socket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/corosock/errors"
)

// Metrics counts socket activity. A nil *Metrics records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	failures *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	open     prometheus.Gauge
}

// NewMetrics creates the socket collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corosock",
			Subsystem: "socket",
			Name:      "operations_total",
			Help:      "Completed socket operations by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corosock",
			Subsystem: "socket",
			Name:      "failures_total",
			Help:      "Failed socket operations by operation and error kind.",
		}, []string{"op", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corosock",
			Subsystem: "socket",
			Name:      "bytes_total",
			Help:      "Payload bytes transferred by direction.",
		}, []string{"direction"}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "corosock",
			Subsystem: "socket",
			Name:      "open_descriptors",
			Help:      "Descriptors currently owned by sockets.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.failures, m.bytes, m.open)
	}
	return m
}

func (m *Metrics) op(op errors.Op) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(string(op)).Inc()
}

func (m *Metrics) failure(op errors.Op, kind errors.Kind) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(op), string(kind)).Inc()
}

func (m *Metrics) sent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues("sent").Add(float64(n))
}

func (m *Metrics) received(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues("received").Add(float64(n))
}

func (m *Metrics) opened() {
	if m == nil {
		return
	}
	m.open.Inc()
}

func (m *Metrics) closed() {
	if m == nil {
		return
	}
	m.open.Dec()
}
